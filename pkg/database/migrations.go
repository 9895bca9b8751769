package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all core schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create principals table",
			SQL: `
				CREATE TABLE IF NOT EXISTS principals (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(255),
					platform_role VARCHAR(32) NOT NULL DEFAULT 'operator',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_principals_platform_role ON principals(platform_role);
			`,
		},
		{
			Version:     2,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id VARCHAR(64) PRIMARY KEY,
					display_name VARCHAR(255) NOT NULL,
					default_locale VARCHAR(16) NOT NULL DEFAULT 'en',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS grants (
					tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					principal_id BIGINT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
					role VARCHAR(32) NOT NULL,
					granted_by BIGINT REFERENCES principals(id) ON DELETE SET NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (tenant_id, principal_id)
				);

				CREATE INDEX idx_grants_principal_id ON grants(principal_id);
				CREATE INDEX idx_grants_role ON grants(role);
			`,
		},
		{
			Version:     4,
			Description: "Create taxonomy_types table",
			SQL: `
				CREATE TABLE IF NOT EXISTS taxonomy_types (
					id BIGSERIAL PRIMARY KEY,
					tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					slug VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL,
					required BOOLEAN NOT NULL DEFAULT FALSE,
					allow_multiple BOOLEAN NOT NULL DEFAULT FALSE,
					used_for_filtering BOOLEAN NOT NULL DEFAULT FALSE,
					used_for_map_styling BOOLEAN NOT NULL DEFAULT FALSE,
					display_order INT NOT NULL DEFAULT 0,
					status VARCHAR(16) NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, slug)
				);

				CREATE INDEX idx_taxonomy_types_tenant_id ON taxonomy_types(tenant_id);
				CREATE INDEX idx_taxonomy_types_status ON taxonomy_types(status);
			`,
		},
		{
			Version:     5,
			Description: "Create taxonomy_values table",
			SQL: `
				CREATE TABLE IF NOT EXISTS taxonomy_values (
					id BIGSERIAL PRIMARY KEY,
					type_id BIGINT NOT NULL REFERENCES taxonomy_types(id) ON DELETE CASCADE,
					slug VARCHAR(255) NOT NULL,
					label VARCHAR(255) NOT NULL,
					color VARCHAR(16),
					icon VARCHAR(255),
					size_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0 CHECK (size_multiplier > 0),
					display_order INT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(type_id, slug)
				);

				CREATE INDEX idx_taxonomy_values_type_id ON taxonomy_values(type_id);
			`,
		},
		{
			Version:     6,
			Description: "Create assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS assignments (
					record_id VARCHAR(64) NOT NULL,
					value_id BIGINT NOT NULL REFERENCES taxonomy_values(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (record_id, value_id)
				);

				CREATE INDEX idx_assignments_value_id ON assignments(value_id);
			`,
		},
		{
			Version:     7,
			Description: "Create tenant_invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenant_invitations (
					id BIGSERIAL PRIMARY KEY,
					tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					role VARCHAR(32) NOT NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					invited_by BIGINT REFERENCES principals(id) ON DELETE SET NULL,
					invited_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP,
					accepted_by BIGINT REFERENCES principals(id) ON DELETE SET NULL,
					UNIQUE(tenant_id, email)
				);

				CREATE INDEX idx_tenant_invitations_expires_at ON tenant_invitations(expires_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
