package sqlite

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/lumiere-storefront/internal/storage"
)

func TestStore_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)

	_, err = s.Get(ctx, "cartId")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "cartId", "gid://shopify/Cart/a"))
	require.NoError(t, s.Set(ctx, "cartId", "gid://shopify/Cart/b"))

	v, err := s.Get(ctx, "cartId")
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Cart/b", v, "set overwrites")
	require.NoError(t, s.Close())

	// Reopening the file keeps the slot, like local storage across reloads.
	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, err = s.Get(ctx, "cartId")
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Cart/b", v)

	require.NoError(t, s.Delete(ctx, "cartId"))
	_, err = s.Get(ctx, "cartId")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestStore_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery(regexp.QuoteMeta(getSQL)).WithArgs("cartId").WillReturnError(boom)
	mock.ExpectExec(regexp.QuoteMeta(deleteSQL)).WithArgs("cartId").WillReturnError(boom)

	s := NewStore(db)

	_, err = s.Get(context.Background(), "cartId")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, storage.ErrNotFound)

	err = s.Delete(context.Background(), "cartId")
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}
