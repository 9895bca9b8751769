package tenant

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

func TestCreateInvitation(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO tenant_invitations`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	inv := &Invitation{
		TenantID: "amsterdam",
		Email:    "new-operator@example.com",
		Role:     identity.RoleOperator,
	}
	require.NoError(t, store.CreateInvitation(context.Background(), inv))
	assert.Equal(t, int64(1), inv.ID)
	assert.NotEmpty(t, inv.Token)
	assert.True(t, inv.ExpiresAt.After(inv.InvitedAt))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvitation_SuperuserRejected(t *testing.T) {
	store, _, db := newMockStore(t)
	defer db.Close()

	inv := &Invitation{
		TenantID: "amsterdam",
		Email:    "root@example.com",
		Role:     identity.RoleSuperuser,
	}
	err := store.CreateInvitation(context.Background(), inv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be granted")
}

func TestAcceptInvitation(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, tenant_id, role, expires_at, accepted_at`).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "role", "expires_at", "accepted_at"}).
			AddRow(1, "amsterdam", string(identity.RoleOperator), time.Now().Add(time.Hour), sql.NullTime{}))
	mock.ExpectExec(`INSERT INTO grants`).
		WithArgs("amsterdam", int64(42), string(identity.RoleOperator)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tenant_invitations SET accepted_at`).
		WithArgs(int64(42), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.AcceptInvitation(context.Background(), "tok-1", 42))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptInvitation_Expired(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, tenant_id, role, expires_at, accepted_at`).
		WithArgs("tok-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "role", "expires_at", "accepted_at"}).
			AddRow(2, "amsterdam", string(identity.RoleOperator), time.Now().Add(-time.Hour), sql.NullTime{}))
	mock.ExpectRollback()

	err := store.AcceptInvitation(context.Background(), "tok-2", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestAcceptInvitation_AlreadyAccepted(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, tenant_id, role, expires_at, accepted_at`).
		WithArgs("tok-3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "role", "expires_at", "accepted_at"}).
			AddRow(3, "amsterdam", string(identity.RoleOperator), time.Now().Add(time.Hour),
				sql.NullTime{Time: time.Now(), Valid: true}))
	mock.ExpectRollback()

	err := store.AcceptInvitation(context.Background(), "tok-3", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already accepted")
}

func TestCleanupExpiredInvitations(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM tenant_invitations WHERE expires_at`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.CleanupExpiredInvitations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}
