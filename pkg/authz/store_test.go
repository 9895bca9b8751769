package authz

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

func newMockGrantStore(t *testing.T) (*GrantStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewGrantStore(db), mock
}

func grantRows(role identity.Role) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"tenant_id", "principal_id", "role", "granted_by", "granted_at"}).
		AddRow("berlin", 7, string(role), 1, time.Now())
}

func TestGrantStore_Get(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectQuery(`SELECT tenant_id, principal_id, role, granted_by, granted_at`).
		WithArgs("berlin", int64(7)).
		WillReturnRows(grantRows(identity.RoleAdmin))

	g, err := store.Get(context.Background(), "berlin", 7)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "berlin", g.TenantID)
	assert.Equal(t, identity.RoleAdmin, g.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_GetAbsentIsNotAnError(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectQuery(`SELECT tenant_id, principal_id, role`).
		WithArgs("berlin", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "principal_id", "role", "granted_by", "granted_at"}))

	g, err := store.Get(context.Background(), "berlin", 7)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGrantStore_InsertDuplicate(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectQuery(`INSERT INTO grants`).
		WithArgs("berlin", int64(7), "operator", int64(1)).
		WillReturnError(&pq.Error{Code: "23505"})

	grantedBy := int64(1)
	err := store.Insert(context.Background(), &Grant{
		TenantID:    "berlin",
		PrincipalID: 7,
		Role:        identity.RoleOperator,
		GrantedBy:   &grantedBy,
	})
	assert.ErrorIs(t, err, ErrDuplicateGrant)
}

func TestGrantStore_InsertRejectsNonTenantRole(t *testing.T) {
	store, _ := newMockGrantStore(t)

	err := store.Insert(context.Background(), &Grant{
		TenantID:    "berlin",
		PrincipalID: 7,
		Role:        identity.RoleSuperuser,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be stored in a grant")
}

func TestGrantStore_Upsert(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectQuery(`INSERT INTO grants .* ON CONFLICT \(tenant_id, principal_id\) DO UPDATE`).
		WithArgs("berlin", int64(7), "admin", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"granted_at"}).AddRow(time.Now()))

	grantedBy := int64(1)
	g := &Grant{TenantID: "berlin", PrincipalID: 7, Role: identity.RoleAdmin, GrantedBy: &grantedBy}
	require.NoError(t, store.Upsert(context.Background(), g))
	assert.False(t, g.GrantedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_Revoke(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT role FROM grants .* FOR UPDATE`).
		WithArgs("berlin", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("operator"))
	mock.ExpectExec(`DELETE FROM grants`).
		WithArgs("berlin", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Revoke(context.Background(), "berlin", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_RevokeMissing(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT role FROM grants .* FOR UPDATE`).
		WithArgs("berlin", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}))
	mock.ExpectRollback()

	err := store.Revoke(context.Background(), "berlin", 7)
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestGrantStore_RevokeLastAdminRejected(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT role FROM grants .* FOR UPDATE`).
		WithArgs("berlin", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM grants`).
		WithArgs("berlin", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM principals`).
		WithArgs("superuser").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := store.Revoke(context.Background(), "berlin", 7)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
}

func TestGrantStore_RevokeLastAdminAllowedWithSuperuserPath(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT role FROM grants .* FOR UPDATE`).
		WithArgs("berlin", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM grants`).
		WithArgs("berlin", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM principals`).
		WithArgs("superuser").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM grants`).
		WithArgs("berlin", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Revoke(context.Background(), "berlin", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_ListByTenant(t *testing.T) {
	store, mock := newMockGrantStore(t)

	rows := sqlmock.NewRows([]string{"tenant_id", "principal_id", "role", "granted_by", "granted_at"}).
		AddRow("berlin", 7, "admin", 1, time.Now()).
		AddRow("berlin", 9, "operator", 7, time.Now())

	mock.ExpectQuery(`SELECT tenant_id, principal_id, role`).
		WithArgs("berlin").
		WillReturnRows(rows)

	grants, err := store.ListByTenant(context.Background(), "berlin")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, identity.RoleAdmin, grants[0].Role)
	assert.Equal(t, int64(9), grants[1].PrincipalID)
}
