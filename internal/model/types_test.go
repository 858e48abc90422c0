package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStorageType(t *testing.T) {
	st, known := ParseStorageType("ram")
	require.True(t, known)
	require.Equal(t, RAM, st)

	st, known = ParseStorageType("postgres")
	require.False(t, known)
	require.Equal(t, RAM, st)
}

func TestParseQueueType(t *testing.T) {
	qt, known := ParseQueueType("mutex")
	require.True(t, known)
	require.Equal(t, MutexQueue, qt)

	qt, known = ParseQueueType("lockfree")
	require.False(t, known)
	require.Equal(t, MutexQueue, qt)
}

func TestTypeStrings(t *testing.T) {
	require.Equal(t, "PostMessageSafe", PostMessageSafe.String())
	require.Equal(t, "GetSuccess", GetSuccess.String())
	require.Equal(t, "Text", Text.String())
	require.Equal(t, "Unknown RequestType", RequestType(255).String())
}
