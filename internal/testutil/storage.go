package testutil

import (
	"testing"

	"trazio/internal/database"
	"trazio/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory sqlite session store, closed with the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), &storage.Entry{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewStorage returns a LocalStorage on a fresh NewDB.
func NewStorage(t testing.TB) storage.LocalStorage {
	t.Helper()
	return storage.NewLocalStorage(NewDB(t))
}
