package authz

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityatlas/cityatlas/pkg/database"
	"github.com/cityatlas/cityatlas/pkg/identity"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, identity.NewStore(db), NewGrantStore(db), nil, nil)
	return svc, mock
}

func principalRows(id int64, role identity.Role) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "username", "email", "platform_role", "is_active", "created_at", "updated_at"}).
		AddRow(id, "user", "user@example.com", string(role), true, now, now)
}

func expectPrincipal(mock sqlmock.Sqlmock, id int64, role identity.Role) {
	mock.ExpectQuery(`SELECT id, username, email, platform_role`).
		WithArgs(id).
		WillReturnRows(principalRows(id, role))
}

func expectGrant(mock sqlmock.Sqlmock, tenantID string, principalID int64, role identity.Role) {
	mock.ExpectQuery(`SELECT tenant_id, principal_id, role`).
		WithArgs(tenantID, principalID).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "principal_id", "role", "granted_by", "granted_at"}).
			AddRow(tenantID, principalID, string(role), 1, time.Now()))
}

func expectNoGrant(mock sqlmock.Sqlmock, tenantID string, principalID int64) {
	mock.ExpectQuery(`SELECT tenant_id, principal_id, role`).
		WithArgs(tenantID, principalID).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "principal_id", "role", "granted_by", "granted_at"}))
}

func TestService_Resolve(t *testing.T) {
	t.Run("tenant admin allowed to manage users", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleOperator)
		expectGrant(mock, "berlin", 2, identity.RoleAdmin)

		d, err := svc.Resolve(context.Background(), 2, "berlin", ActionManageTenantUsers)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superuser skips the grant lookup", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 1, identity.RoleSuperuser)

		d, err := svc.Resolve(context.Background(), 1, "berlin", ActionManageTenantSettings)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown principal denied", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectQuery(`SELECT id, username, email, platform_role`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "platform_role", "is_active", "created_at", "updated_at"}))
		expectNoGrant(mock, "berlin", 99)

		d, err := svc.Resolve(context.Background(), 99, "berlin", ActionWriteTenantData)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("read-public needs no store access", func(t *testing.T) {
		svc, mock := newMockService(t)

		d, err := svc.Resolve(context.Background(), 0, "", ActionReadPublic)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transient failures exhaust into unavailable", func(t *testing.T) {
		svc, mock := newMockService(t)
		for i := 0; i < 3; i++ {
			mock.ExpectQuery(`SELECT id, username, email, platform_role`).
				WithArgs(int64(2)).
				WillReturnError(&pq.Error{Code: "08006"})
		}

		_, err := svc.Resolve(context.Background(), 2, "berlin", ActionWriteTenantData)
		assert.ErrorIs(t, err, database.ErrUnavailable)
	})
}

func TestService_Grant(t *testing.T) {
	t.Run("tenant admin grants operator", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleOperator)
		expectGrant(mock, "berlin", 2, identity.RoleAdmin)
		expectNoGrant(mock, "berlin", 7)
		mock.ExpectQuery(`INSERT INTO grants .* ON CONFLICT`).
			WithArgs("berlin", int64(7), "operator", int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"granted_at"}).AddRow(time.Now()))

		g, err := svc.Grant(context.Background(), 2, 7, "berlin", identity.RoleOperator)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleOperator, g.Role)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tenant admin granting admin is escalation", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleOperator)
		expectGrant(mock, "berlin", 2, identity.RoleAdmin)

		_, err := svc.Grant(context.Background(), 2, 7, "berlin", identity.RoleAdmin)
		require.Error(t, err)
		assert.True(t, IsPrivilegeEscalation(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superuser may grant admin", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 1, identity.RoleSuperuser)
		expectNoGrant(mock, "berlin", 7)
		mock.ExpectQuery(`INSERT INTO grants .* ON CONFLICT`).
			WithArgs("berlin", int64(7), "admin", int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"granted_at"}).AddRow(time.Now()))

		g, err := svc.Grant(context.Background(), 1, 7, "berlin", identity.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAdmin, g.Role)
	})

	t.Run("granting superuser is never a tenant grant", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 1, identity.RoleSuperuser)

		_, err := svc.Grant(context.Background(), 1, 7, "berlin", identity.RoleSuperuser)
		require.Error(t, err)
		assert.True(t, IsPrivilegeEscalation(err))
	})

	t.Run("same role is an idempotent no-op", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleOperator)
		expectGrant(mock, "berlin", 2, identity.RoleAdmin)
		expectGrant(mock, "berlin", 7, identity.RoleOperator)

		g, err := svc.Grant(context.Background(), 2, 7, "berlin", identity.RoleOperator)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleOperator, g.Role)
		// No INSERT expected
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("operator may not grant at all", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 3, identity.RoleOperator)
		expectGrant(mock, "berlin", 3, identity.RoleOperator)

		_, err := svc.Grant(context.Background(), 3, 7, "berlin", identity.RoleOperator)
		assert.ErrorIs(t, err, ErrDenied)
	})
}

func TestService_Revoke(t *testing.T) {
	t.Run("tenant admin revokes operator", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleOperator)
		expectGrant(mock, "berlin", 2, identity.RoleAdmin)
		expectGrant(mock, "berlin", 7, identity.RoleOperator)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT role FROM grants .* FOR UPDATE`).
			WithArgs("berlin", int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("operator"))
		mock.ExpectExec(`DELETE FROM grants`).
			WithArgs("berlin", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, svc.Revoke(context.Background(), 2, 7, "berlin"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tenant admin revoking an admin is escalation", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleOperator)
		expectGrant(mock, "berlin", 2, identity.RoleAdmin)
		expectGrant(mock, "berlin", 8, identity.RoleAdmin)

		err := svc.Revoke(context.Background(), 2, 8, "berlin")
		require.Error(t, err)
		assert.True(t, IsPrivilegeEscalation(err))
	})

	t.Run("missing grant", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleOperator)
		expectGrant(mock, "berlin", 2, identity.RoleAdmin)
		expectNoGrant(mock, "berlin", 7)

		err := svc.Revoke(context.Background(), 2, 7, "berlin")
		assert.ErrorIs(t, err, ErrGrantNotFound)
	})

	t.Run("last admin invariant propagates", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 1, identity.RoleSuperuser)
		expectGrant(mock, "berlin", 8, identity.RoleAdmin)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT role FROM grants .* FOR UPDATE`).
			WithArgs("berlin", int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM grants`).
			WithArgs("berlin", "admin").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM principals`).
			WithArgs("superuser").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		err := svc.Revoke(context.Background(), 1, 8, "berlin")
		require.Error(t, err)
		assert.True(t, IsInvariantViolation(err))
	})
}

func TestService_SetPlatformRole(t *testing.T) {
	t.Run("superuser promotes", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 1, identity.RoleSuperuser)
		mock.ExpectExec(`UPDATE principals SET platform_role`).
			WithArgs("admin", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, svc.SetPlatformRole(context.Background(), 1, 7, identity.RoleAdmin))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin denied manage-platform", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectPrincipal(mock, 2, identity.RoleAdmin)

		err := svc.SetPlatformRole(context.Background(), 2, 7, identity.RoleAdmin)
		assert.ErrorIs(t, err, ErrDenied)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_PromoteAndGrant(t *testing.T) {
	svc, mock := newMockService(t)
	expectPrincipal(mock, 1, identity.RoleSuperuser)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE principals SET platform_role`).
		WithArgs("admin", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO grants .* ON CONFLICT`).
		WithArgs("berlin", int64(7), "admin", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.PromoteAndGrant(context.Background(), 1, 7, identity.RoleAdmin, "berlin", identity.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
