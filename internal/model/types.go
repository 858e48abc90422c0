package model

// StorageType selects the storage backend for topic slots.
type StorageType int

const (
	RAM StorageType = iota
)

func (t StorageType) String() string {
	switch t {
	case RAM:
		return "StorageType::RAM"
	default:
		return "Unknown StorageType"
	}
}

// ParseStorageType maps a config string to a StorageType. The second result
// is false when the string is unknown and the single defined variant was
// returned as a fallback.
func ParseStorageType(name string) (StorageType, bool) {
	if name == "ram" {
		return RAM, true
	}
	return RAM, false
}

// QueueType selects the queue implementation used inside topic slots.
type QueueType int

const (
	MutexQueue QueueType = iota
)

func (t QueueType) String() string {
	switch t {
	case MutexQueue:
		return "QueueType::MutexQueue"
	default:
		return "Unknown QueueType"
	}
}

// ParseQueueType maps a config string to a QueueType. The second result is
// false when the string is unknown and the fallback variant was returned.
func ParseQueueType(name string) (QueueType, bool) {
	if name == "mutex" {
		return MutexQueue, true
	}
	return MutexQueue, false
}
