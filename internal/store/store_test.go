package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "homewatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPatterns_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.LoadPatterns(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, s.SavePatterns(ctx, map[string]float64{
		"doorbell_chime": 0.42,
		"motion":         0.10,
	}))

	got, err = s.LoadPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.InDelta(t, 0.42, got["doorbell_chime"], 1e-9)
}

func TestPatterns_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePatterns(ctx, map[string]float64{"motion": 0.1}))
	require.NoError(t, s.SavePatterns(ctx, map[string]float64{"motion": 0.7}))

	got, err := s.LoadPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.InDelta(t, 0.7, got["motion"], 1e-9)
}

func TestAuditArchive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, ok, err := s.LatestArchive(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.ArchiveAudit(ctx, []byte(`[{"request_id":"a"}]`)))
	require.NoError(t, s.ArchiveAudit(ctx, []byte(`[{"request_id":"b"}]`)))

	payload, exportedAt, ok, err := s.LatestArchive(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, exportedAt.IsZero())
	require.JSONEq(t, `[{"request_id":"b"}]`, string(payload))
}

func TestOpen_CreatesSchemaIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "homewatch.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SavePatterns(context.Background(), map[string]float64{"motion": 0.3}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.LoadPatterns(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 0.3, got["motion"], 1e-9)
}
