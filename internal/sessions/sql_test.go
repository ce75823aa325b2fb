package sessions

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&CartSession{}))
	return conn
}

func TestSQLStoreLifecycle(t *testing.T) {
	store := NewSQLStore(openSQLite(t), "storefront")
	ctx := context.Background()

	_, err := store.Load(ctx, "visitor-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "visitor-1", `{"session_id":"c1"}`))
	require.NoError(t, store.Save(ctx, "visitor-1", `{"session_id":"c2"}`))

	got, err := store.Load(ctx, "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, `{"session_id":"c2"}`, got)

	require.NoError(t, store.Delete(ctx, "visitor-1"))
	_, err = store.Load(ctx, "visitor-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStoreIsolatesNamespaces(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	a := NewSQLStore(db, "storefront")
	b := NewSQLStore(db, "wholesale")

	require.NoError(t, a.Save(ctx, "visitor-1", "a"))
	_, err := b.Load(ctx, "visitor-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStoreSweepExpired(t *testing.T) {
	store := NewSQLStore(openSQLite(t), "storefront")
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base.Add(-40 * 24 * time.Hour) }
	require.NoError(t, store.Save(ctx, "old-visitor", "old"))
	store.now = func() time.Time { return base }
	require.NoError(t, store.Save(ctx, "new-visitor", "new"))

	removed, err := store.SweepExpired(ctx, base.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = store.Load(ctx, "old-visitor")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := store.Load(ctx, "new-visitor")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}
