package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqttlat/internal/batch"
	"mqttlat/internal/trial"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func batchOutcome(name string) (batch.Config, batch.Result) {
	hs := 20 * time.Millisecond
	pa := 10 * time.Millisecond
	total := 30 * time.Millisecond
	cfg := batch.Config{
		Configurations: []trial.Config{{Name: name, Host: "localhost", Port: 8883}},
		Iterations:     2,
	}
	res := batch.Result{
		Order: []string{name},
		PerConfig: map[string][]trial.Result{
			name: {
				{Iteration: 1, ConfigName: name, Handshake: &hs, PubAck: &pa, Total: &total},
				{Iteration: 2, ConfigName: name, Handshake: &hs, PubAck: &pa, Total: &total},
			},
		},
	}
	return cfg, res
}

func TestNewRecord(t *testing.T) {
	cfg, res := batchOutcome("ecc_p256")
	rec := NewRecord(cfg, res)

	assert.NotEmpty(t, rec.ID)
	assert.WithinDuration(t, time.Now(), rec.Timestamp, time.Minute)
	assert.Equal(t, 2, rec.Iterations)
	assert.Equal(t, []string{"ecc_p256"}, rec.Configs)

	summary, ok := rec.Summaries["ecc_p256"]
	require.True(t, ok)
	assert.Equal(t, 2, summary.Successful)
	require.NotNil(t, summary.Handshake.Mean)
	assert.InDelta(t, 20.0, *summary.Handshake.Mean, 1e-9)
}

func TestStoreSaveListRoundTrip(t *testing.T) {
	s := openTestStore(t)

	cfg, res := batchOutcome("ecc_p256")
	rec := NewRecord(cfg, res)
	require.NoError(t, s.Save(rec))

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Configs, got.Configs)
	assert.Equal(t, rec.Iterations, got.Iterations)
	require.NotNil(t, got.Summaries["ecc_p256"].PubAck.Mean)
	assert.InDelta(t, 10.0, *got.Summaries["ecc_p256"].PubAck.Mean, 1e-9)
}

func TestStoreListNewestFirst(t *testing.T) {
	s := openTestStore(t)

	cfg, res := batchOutcome("cfg")
	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		rec := NewRecord(cfg, res)
		rec.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(rec))
		ids = append(ids, rec.ID)
	}

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, ids[2], recs[0].ID)
	assert.Equal(t, ids[1], recs[1].ID)
	assert.Equal(t, ids[0], recs[2].ID)
}

func TestStoreGet(t *testing.T) {
	s := openTestStore(t)

	cfg, res := batchOutcome("cfg")
	rec := NewRecord(cfg, res)
	require.NoError(t, s.Save(rec))

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = s.Get("no-such-id")
	assert.ErrorContains(t, err, "not found")
}

func TestStorePrunesOldestBeyondCap(t *testing.T) {
	s := openTestStore(t)

	cfg, res := batchOutcome("cfg")
	base := time.Now().Add(-24 * time.Hour)
	total := maxRecords + 5
	var ids []string
	for i := 0; i < total; i++ {
		rec := NewRecord(cfg, res)
		rec.ID = fmt.Sprintf("rec-%03d", i)
		rec.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Save(rec))
		ids = append(ids, rec.ID)
	}

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, maxRecords)

	// Newest kept, oldest five gone.
	assert.Equal(t, ids[total-1], recs[0].ID)
	assert.Equal(t, ids[5], recs[len(recs)-1].ID)
}
