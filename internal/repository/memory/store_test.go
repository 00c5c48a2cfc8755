package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

func TestStore_ApplyBumpsVersions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	transports := NewTransportRepository(store)
	slots := NewSlotRepository(store)

	tr := &domain.Transport{Reference: "T-1", Type: domain.TransportExport, Lifecycle: domain.NewLifecycle()}
	require.NoError(t, transports.Create(ctx, tr))
	sl := &domain.Slot{Date: domain.MustDate("2024-06-01"), SlotNumber: 1}
	require.NoError(t, slots.Create(ctx, sl))

	sl.Append(tr.ID, tr.CreatedAt)
	tr.Notes = "fragile"
	cs := &domain.ChangeSet{Transports: []*domain.Transport{tr}, Slots: []*domain.Slot{sl}}
	require.NoError(t, store.Apply(ctx, cs))
	assert.Equal(t, int64(2), tr.Version)
	assert.Equal(t, int64(2), sl.Version)

	stored, err := slots.ListByTransport(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, sl.ID, stored[0].ID)
}

func TestStore_ApplyRejectsStaleVersionAtomically(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	transports := NewTransportRepository(store)
	slots := NewSlotRepository(store)

	tr := &domain.Transport{Reference: "T-1", Lifecycle: domain.NewLifecycle()}
	require.NoError(t, transports.Create(ctx, tr))
	sl := &domain.Slot{Date: domain.MustDate("2024-06-01"), SlotNumber: 1}
	require.NoError(t, slots.Create(ctx, sl))

	stale := sl.Clone()
	stale.Version = 0
	tr.Notes = "changed"

	err := store.Apply(ctx, &domain.ChangeSet{Transports: []*domain.Transport{tr}, Slots: []*domain.Slot{stale}})
	assert.ErrorIs(t, err, errors.ErrConcurrentModification)

	got, err := transports.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Notes)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := NewTransportRepository(store).GetByID(ctx, 42)
	assert.Equal(t, errors.CodeTransportNotFound, errors.CodeOf(err))

	_, err = store.GetDriver(ctx, 42)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestStore_ListOpenSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewTransportRepository(store)

	live := &domain.Transport{Reference: "live", Lifecycle: domain.NewLifecycle()}
	gone := &domain.Transport{Reference: "gone", Lifecycle: domain.NewLifecycle()}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, gone))

	var err error
	gone.Lifecycle, err = gone.Lifecycle.Delete()
	require.NoError(t, err)
	require.NoError(t, store.Apply(ctx, &domain.ChangeSet{Transports: []*domain.Transport{gone}}))

	open, err := repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "live", open[0].Reference)
}
