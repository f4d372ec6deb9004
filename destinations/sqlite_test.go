package destinations

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicekit/sluice/core"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteAcceptStoresRow(t *testing.T) {
	s := newTestSQLite(t)

	event := core.NewEvent(core.WarningLevel, "disk at {pct}%")
	event.RenderedMessage = "disk at 91%"
	event.Properties["pct"] = 91
	event.Exception = errors.New("threshold breached")
	require.NoError(t, s.Accept(event))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var level, message, template, exception, properties string
	row := s.db.QueryRow(`SELECT level, message, template, exception, properties FROM events`)
	require.NoError(t, row.Scan(&level, &message, &template, &exception, &properties))
	assert.Equal(t, "Warning", level)
	assert.Equal(t, "disk at 91%", message)
	assert.Equal(t, "disk at {pct}%", template)
	assert.Equal(t, "threshold breached", exception)

	var props map[string]any
	require.NoError(t, json.Unmarshal([]byte(properties), &props))
	assert.Equal(t, float64(91), props["pct"])
}

func TestSQLiteNullColumnsWhenAbsent(t *testing.T) {
	s := newTestSQLite(t)

	event := core.NewEvent(core.InformationLevel, "bare")
	event.RenderedMessage = "bare"
	require.NoError(t, s.Accept(event))

	var exception, properties any
	row := s.db.QueryRow(`SELECT exception, properties FROM events`)
	require.NoError(t, row.Scan(&exception, &properties))
	assert.Nil(t, exception)
	assert.Nil(t, properties)
}

func TestSQLiteAcceptBatchCommitsAll(t *testing.T) {
	s := newTestSQLite(t)

	batch := make([]*core.Event, 25)
	for i := range batch {
		event := core.NewEvent(core.InformationLevel, "batched")
		event.RenderedMessage = "batched"
		event.Properties["n"] = i
		batch[i] = event
	}
	require.NoError(t, s.AcceptBatch(batch))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)
}

func TestSQLiteProbe(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Probe(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Probe(context.Background()))
}

func TestSQLiteReopenRetainsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	event := core.NewEvent(core.InformationLevel, "persisted")
	event.RenderedMessage = "persisted"
	require.NoError(t, s.Accept(event))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
