package badgerstore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-sync/internal/auth"
	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func quake(id string, mag float64) domain.Earthquake {
	return domain.Earthquake{
		ExternalID: id,
		Magnitude:  domain.Float(mag),
		Place:      "Somewhere",
		Lat:        1,
		Lon:        2,
		OccurredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_UpsertCreatesThenUpdates(t *testing.T) {
	s := openStore(t)
	r := reconcile.New(s, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	ctx := context.Background()

	assert.Equal(t, reconcile.OutcomeCreated, r.Upsert(ctx, quake("b", 3.1)))
	assert.Equal(t, reconcile.OutcomeCreated, r.Upsert(ctx, quake("a", 2.0)))
	assert.Equal(t, reconcile.OutcomeUpdated, r.Upsert(ctx, quake("b", 3.4)))

	docs, err := s.Documents(ctx)
	require.NoError(t, err)
	want := []domain.QuakeDocument{
		domain.ToDocument(quake("a", 2.0)),
		domain.ToDocument(quake("b", 3.4)),
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	s := openStore(t)

	err := s.Update(context.Background(), "ghost", domain.QuakeDocument{USGSID: "ghost"})

	assert.ErrorIs(t, err, reconcile.ErrRecordNotFound)
}

func TestStore_Users(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	u := auth.User{ID: "u1", Email: "ada@example.com", PasswordHash: "hash", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	_, ok, err := s.FindUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, u), auth.ErrUserExists)

	got, ok, err := s.FindUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, u, got)
}
