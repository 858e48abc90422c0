// Package broker owns the per-topic message and waiter storage and the
// producer/consumer hand-off discipline.
package broker

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tsinin/message-broker/internal/model"
)

// Waiter is a consumer parked on an empty topic. Storage keeps a reference
// to it in the topic's waiter queue and calls Deliver to push a freshly
// posted message into its outbound path. Deliver must not block.
type Waiter interface {
	Deliver(msg model.Message)
}

// Storage is the topic registry shared by all connections.
type Storage interface {
	// PostMessage stores a message, or hands it directly to the first
	// parked waiter of the topic. Exactly one of the two happens.
	PostMessage(msg model.Message, topic string)

	// GetMessageNonblocking pops the head message of a topic. The second
	// result is false when the topic has no messages.
	GetMessageNonblocking(topic string) (model.Message, bool)

	// GetMessageBlocking pops the head message of a topic. When the topic
	// is empty it enqueues w as a waiter and returns false; the caller is
	// then parked and must not respond until Deliver is invoked.
	GetMessageBlocking(topic string, w Waiter) (model.Message, bool)

	// Stats returns a snapshot of all topic slots, sorted by topic.
	Stats() []TopicStat
}

// TopicStat is a point-in-time view of one topic slot.
type TopicStat struct {
	Topic   string `json:"topic"`
	Pending int    `json:"pending"`
	Waiters int    `json:"waiters"`
}

// New creates a storage of the given type backed by queues of the given
// type. Both enumerations currently have a single variant.
func New(storageType model.StorageType, queueType model.QueueType, logger *zap.Logger) Storage {
	switch storageType {
	case model.RAM:
		return newRAMStorage(queueType, logger)
	default:
		return newRAMStorage(queueType, logger)
	}
}

// slot pairs the two queues owned by one topic. A slot is created on first
// use of either queue and lives for the rest of the run.
type slot struct {
	messages model.Queue[model.Message]
	waiters  model.Queue[Waiter]
}

// ramStorage keeps every topic slot in process memory. The storage-wide
// mutex serializes the enqueue-or-hand-off decision; the queues carry their
// own locks for isolated single-operation use.
type ramStorage struct {
	mu        sync.Mutex
	slots     map[string]*slot
	queueType model.QueueType
	logger    *zap.Logger
}

func newRAMStorage(queueType model.QueueType, logger *zap.Logger) *ramStorage {
	return &ramStorage{
		slots:     make(map[string]*slot),
		queueType: queueType,
		logger:    logger,
	}
}

// getOrCreateSlot returns the slot for a topic. Caller must hold s.mu.
func (s *ramStorage) getOrCreateSlot(topic string) *slot {
	sl, ok := s.slots[topic]
	if !ok {
		sl = &slot{
			messages: model.NewQueue[model.Message](s.queueType),
			waiters:  model.NewQueue[Waiter](s.queueType),
		}
		s.slots[topic] = sl
	}
	return sl
}

func (s *ramStorage) PostMessage(msg model.Message, topic string) {
	s.mu.Lock()

	if sl, ok := s.slots[topic]; ok {
		if w, ok := sl.waiters.Pop(); ok {
			// Hand off directly; the message never touches the queue.
			// Deliver runs outside the storage lock.
			s.mu.Unlock()
			s.logger.Debug("message handed to waiter", zap.String("topic", topic))
			w.Deliver(msg)
			return
		}
	}

	s.getOrCreateSlot(topic).messages.Push(msg)
	s.mu.Unlock()

	s.logger.Debug("message enqueued", zap.String("topic", topic))
}

func (s *ramStorage) GetMessageNonblocking(topic string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[topic]
	if !ok {
		s.logger.Debug("no such topic", zap.String("topic", topic))
		return model.Message{}, false
	}

	msg, ok := sl.messages.Pop()
	if !ok {
		s.logger.Debug("topic is empty", zap.String("topic", topic))
		return model.Message{}, false
	}
	return msg, true
}

func (s *ramStorage) GetMessageBlocking(topic string, w Waiter) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The lock is held across "no head, therefore park" so a concurrent
	// post cannot slip between the check and the waiter enqueue.
	sl := s.getOrCreateSlot(topic)
	msg, ok := sl.messages.Pop()
	if !ok {
		sl.waiters.Push(w)
		s.logger.Debug("consumer parked", zap.String("topic", topic))
		return model.Message{}, false
	}
	return msg, true
}

func (s *ramStorage) Stats() []TopicStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]TopicStat, 0, len(s.slots))
	for topic, sl := range s.slots {
		stats = append(stats, TopicStat{
			Topic:   topic,
			Pending: sl.messages.Len(),
			Waiters: sl.waiters.Len(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Topic < stats[j].Topic })
	return stats
}
