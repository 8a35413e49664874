package crawlwal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)

	require.NoError(t, w.Append(EntryObserved, "accountresolver", map[string]int{"accounts": 3}))
	require.NoError(t, w.AppendError("persist", map[string]string{"batch": "1"}, errors.New("index rejected 3")))
	require.NoError(t, w.Close())

	var entries []*Entry
	require.NoError(t, Replay(dir, before, func(e *Entry) error {
		entries = append(entries, e)
		return nil
	}))

	require.Len(t, entries, 2)
	assert.Equal(t, EntryObserved, entries[0].Type)
	assert.Equal(t, "accountresolver", entries[0].Phase)
	assert.Equal(t, EntryFailed, entries[1].Type)
	assert.Equal(t, "index rejected 3", entries[1].Error)
}

func TestReplaySkipsEntriesBeforeSince(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, w.Append(EntryObserved, "p1", nil))
	require.NoError(t, w.Close())

	var entries []*Entry
	require.NoError(t, Replay(dir, time.Now().Add(time.Hour), func(e *Entry) error {
		entries = append(entries, e)
		return nil
	}))
	assert.Empty(t, entries)
}
