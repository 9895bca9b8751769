package identity

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewStore(db), mock, db
}

func TestStore_Create(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO principals`).
		WithArgs("alice", "alice@example.com", string(RoleOperator)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow(1, true, now, now))

	p := &Principal{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, store.Create(context.Background(), p))
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, RoleOperator, p.PlatformRole)
	assert.True(t, p.IsActive)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_DuplicateUsername(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO principals`).
		WithArgs("alice", "", string(RoleOperator)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Create(context.Background(), &Principal{Username: "alice"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_InvalidRole(t *testing.T) {
	store, _, db := newMockStore(t)
	defer db.Close()

	err := store.Create(context.Background(), &Principal{Username: "bob", PlatformRole: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid platform role")
}

func TestStore_Get(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, username, email, platform_role, is_active, created_at, updated_at`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "platform_role", "is_active", "created_at", "updated_at"}).
			AddRow(7, "carol", sql.NullString{}, string(RoleSuperuser), true, now, now))

	p, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "carol", p.Username)
	assert.Equal(t, RoleSuperuser, p.PlatformRole)
	assert.Equal(t, "", p.Email)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, username, email, platform_role`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetPlatformRole(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE principals SET platform_role`).
			WithArgs(string(RoleAdmin), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.SetPlatformRole(context.Background(), 7, RoleAdmin))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE principals SET platform_role`).
			WithArgs(string(RoleAdmin), int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.SetPlatformRole(context.Background(), 99, RoleAdmin)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid role", func(t *testing.T) {
		err := store.SetPlatformRole(context.Background(), 7, Role("bogus"))
		require.Error(t, err)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectExec(`UPDATE principals SET platform_role`).
			WithArgs(string(RoleOperator), int64(7)).
			WillReturnError(fmt.Errorf("connection reset"))

		err := store.SetPlatformRole(context.Background(), 7, RoleOperator)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update platform role")
	})
}
