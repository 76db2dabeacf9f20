package offer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evconnect/internal/infra/pgtest"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	o := New("s1", "a1", now, 2*time.Minute)
	other := New("s1", "a1", now, 2*time.Minute)

	assert.NotEqual(t, o.ID, other.ID)
	assert.Equal(t, now.Add(2*time.Minute), o.ExpiresAt)
	assert.False(t, o.Accepted())
	assert.False(t, o.ExpiredAt(now.Add(2*time.Minute-time.Nanosecond)))
	assert.True(t, o.ExpiredAt(now.Add(2*time.Minute)))
}

func TestLink(t *testing.T) {
	o := &Offer{ID: "abc"}
	assert.Equal(t, "https://evconnect.test/link/abc", o.Link("https://evconnect.test/"))
	assert.Equal(t, "https://evconnect.test/link/abc", o.Link("https://evconnect.test"))
}

func TestStore_MarkClickedOnce(t *testing.T) {
	ctx := context.Background()
	db := pgtest.Pool(t)
	_, err := db.Exec(ctx, `INSERT INTO agents (id, mobile_number) VALUES ('a1', '+1')`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO services (id, first_name) VALUES ('s1', 'Ann')`)
	require.NoError(t, err)

	store := NewStore(db)
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := New("s1", "a1", now, 2*time.Minute)
	require.NoError(t, store.Create(ctx, o))

	ok, err := store.MarkClicked(ctx, o.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.MarkClicked(ctx, o.ID, now.Add(90*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClickedAt)
	assert.True(t, now.Add(time.Minute).Equal(*got.ClickedAt))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
