package items

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
)

func newItem(t *testing.T, ticketID domain.TicketID, value string, provider domain.AccountID, createdAt time.Time) *models.TicketItem {
	t.Helper()
	item, err := models.NewTicketItem(ticketID, value, models.GenreFQDN, provider, createdAt)
	require.NoError(t, err)
	return item
}

func TestInMemoryStoreDedupIndex(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	ticketID := domain.NewTicketID()

	item := newItem(t, ticketID, "evil.example", "provider-a", now)
	require.NoError(t, store.Insert(ctx, item))

	t.Run("available item is indexed", func(t *testing.T) {
		exists, err := store.ExistsAvailable(ctx, models.GenreFQDN, "evil.example")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("genre is part of the key", func(t *testing.T) {
		exists, err := store.ExistsAvailable(ctx, models.GenreIPv4, "evil.example")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("flagged items leave the index", func(t *testing.T) {
		count, err := store.SetErrorFlag(ctx, ticketID, "evil.example", true, now)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		exists, err := store.ExistsAvailable(ctx, models.GenreFQDN, "evil.example")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("duplicate identifier conflicts", func(t *testing.T) {
		err := store.Insert(ctx, item)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})
}

func TestInMemoryStoreGuardedUpdate(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	ticketID := domain.NewTicketID()

	require.NoError(t, store.Insert(ctx, newItem(t, ticketID, "evil.example", "provider-a", now)))
	require.NoError(t, store.Insert(ctx, newItem(t, ticketID, "evil.example", "provider-b", now)))

	update := ports.ItemUpdate{
		TicketID:   ticketID,
		ProviderID: "provider-a",
		Value:      "evil.example",
		Status:     models.ItemStatusAccepted,
		Note:       "done",
		UpdatedAt:  now.Add(time.Minute),
	}

	t.Run("updates only the owning provider's item", func(t *testing.T) {
		count, err := store.UpdateStatus(ctx, update)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		others, err := store.ListAvailableByProvider(ctx, "provider-b", "evil.example")
		require.NoError(t, err)
		require.Len(t, others, 1)
		assert.Equal(t, models.ItemStatusPending, others[0].Status)
	})

	t.Run("items outside the named ticket are skipped", func(t *testing.T) {
		otherTicket := domain.NewTicketID()
		require.NoError(t, store.Insert(ctx, newItem(t, otherTicket, "evil.example", "provider-a", now)))

		scoped := update
		scoped.TicketID = otherTicket
		scoped.Status = models.ItemStatusRejected
		count, err := store.UpdateStatus(ctx, scoped)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		all, err := store.ListByTicket(ctx, ticketID)
		require.NoError(t, err)
		for _, item := range all {
			assert.NotEqual(t, models.ItemStatusRejected, item.Status)
		}

		_, err = store.DeleteByTicket(ctx, otherTicket)
		require.NoError(t, err)
	})

	t.Run("unavailable items are skipped", func(t *testing.T) {
		_, err := store.SetActiveFlag(ctx, "evil.example", false, now)
		require.NoError(t, err)

		count, err := store.UpdateStatus(ctx, update)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestInMemoryStoreListing(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	ticketID := domain.NewTicketID()

	first := newItem(t, ticketID, "a.example", "provider-a", now)
	second := newItem(t, ticketID, "b.example", "provider-a", now.Add(time.Minute))
	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, first))

	t.Run("ListByTicket orders by admission time", func(t *testing.T) {
		items, err := store.ListByTicket(ctx, ticketID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "a.example", items[0].Value)
		assert.Equal(t, "b.example", items[1].Value)
	})

	t.Run("ListAvailableByTicket filters", func(t *testing.T) {
		_, err := store.SetErrorFlag(ctx, ticketID, "a.example", true, now)
		require.NoError(t, err)

		items, err := store.ListAvailableByTicket(ctx, ticketID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "b.example", items[0].Value)
	})

	t.Run("DistinctActiveValues dedupes and sorts", func(t *testing.T) {
		otherTicket := domain.NewTicketID()
		require.NoError(t, store.Insert(ctx, newItem(t, otherTicket, "b.example", "provider-a", now)))

		values, err := store.DistinctActiveValues(ctx, models.GenreFQDN)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.example", "b.example"}, values)
	})

	t.Run("DeleteByTicket removes only the ticket's items", func(t *testing.T) {
		count, err := store.DeleteByTicket(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		items, err := store.ListByTicket(ctx, ticketID)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	ticketID := domain.NewTicketID()

	require.NoError(t, store.Insert(ctx, newItem(t, ticketID, "evil.example", "provider-a", now)))

	got, err := store.Find(ctx, ticketID, "evil.example")
	require.NoError(t, err)
	got.Status = models.ItemStatusRejected

	again, err := store.Find(ctx, ticketID, "evil.example")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPending, again.Status, "mutating a returned item must not touch the store")
}
