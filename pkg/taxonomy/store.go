package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/cityatlas/cityatlas/pkg/observability"
)

// Invalidator is notified after every schema mutation so downstream
// caches (rendering descriptors) never serve a stale schema. Invalidation
// failures are logged, not propagated: the mutation has already committed.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// Store provides access to taxonomy types, values, and assignments
type Store struct {
	db          *sql.DB
	invalidator Invalidator
	metrics     *observability.Metrics
}

// NewStore creates a taxonomy store. invalidator and metrics may be nil.
func NewStore(db *sql.DB, invalidator Invalidator, metrics *observability.Metrics) *Store {
	return &Store{db: db, invalidator: invalidator, metrics: metrics}
}

const typeColumns = `id, tenant_id, slug, name, required, allow_multiple,
	used_for_filtering, used_for_map_styling, display_order, status, created_at, updated_at`

const valueColumns = `id, type_id, slug, label, color, icon, size_multiplier,
	display_order, created_at, updated_at`

const prefixedValueColumns = `v.id, v.type_id, v.slug, v.label, v.color, v.icon,
	v.size_multiplier, v.display_order, v.created_at, v.updated_at`

// CreateType inserts a new taxonomy type. Types are born active.
func (s *Store) CreateType(ctx context.Context, t *TaxonomyType) error {
	if t.Status == "" {
		t.Status = TypeStatusActive
	}

	query := `
		INSERT INTO taxonomy_types
			(tenant_id, slug, name, required, allow_multiple, used_for_filtering,
			 used_for_map_styling, display_order, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		t.TenantID, t.Slug, t.Name, t.Required, t.AllowMultiple,
		t.UsedForFiltering, t.UsedForMapStyling, t.DisplayOrder, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create taxonomy type: %w", err)
	}

	s.recordMutation(ctx, t.TenantID, "type", "create")
	return nil
}

// GetType retrieves a taxonomy type scoped to a tenant
func (s *Store) GetType(ctx context.Context, tenantID string, typeID int64) (*TaxonomyType, error) {
	query := fmt.Sprintf(`SELECT %s FROM taxonomy_types WHERE tenant_id = $1 AND id = $2`, typeColumns)
	return scanType(s.db.QueryRowContext(ctx, query, tenantID, typeID))
}

// GetTypeBySlug retrieves a taxonomy type by its tenant-unique slug
func (s *Store) GetTypeBySlug(ctx context.Context, tenantID, slug string) (*TaxonomyType, error) {
	query := fmt.Sprintf(`SELECT %s FROM taxonomy_types WHERE tenant_id = $1 AND slug = $2`, typeColumns)
	return scanType(s.db.QueryRowContext(ctx, query, tenantID, slug))
}

// ListTypes retrieves all taxonomy types for a tenant in display order
func (s *Store) ListTypes(ctx context.Context, tenantID string) ([]*TaxonomyType, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM taxonomy_types
		WHERE tenant_id = $1
		ORDER BY display_order ASC, id ASC
	`, typeColumns)

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxonomy types: %w", err)
	}
	defer rows.Close()

	var types []*TaxonomyType
	for rows.Next() {
		t, err := scanTypeRow(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	return types, rows.Err()
}

// UpdateType updates a taxonomy type's mutable fields
func (s *Store) UpdateType(ctx context.Context, t *TaxonomyType) error {
	query := `
		UPDATE taxonomy_types
		SET name = $1, required = $2, allow_multiple = $3, used_for_filtering = $4,
			used_for_map_styling = $5, display_order = $6, updated_at = NOW()
		WHERE tenant_id = $7 AND id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		t.Name, t.Required, t.AllowMultiple, t.UsedForFiltering,
		t.UsedForMapStyling, t.DisplayOrder, t.TenantID, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update taxonomy type: %w", err)
	}
	if err := requireRow(result, ErrTypeNotFound); err != nil {
		return err
	}

	s.recordMutation(ctx, t.TenantID, "type", "update")
	return nil
}

// RetireType soft-disables a taxonomy type. Retired types keep their
// values and existing assignments but reject new ones and drop out of
// descriptor generation.
func (s *Store) RetireType(ctx context.Context, tenantID string, typeID int64) error {
	query := `
		UPDATE taxonomy_types
		SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	result, err := s.db.ExecContext(ctx, query, TypeStatusRetired, tenantID, typeID)
	if err != nil {
		return fmt.Errorf("failed to retire taxonomy type: %w", err)
	}
	if err := requireRow(result, ErrTypeNotFound); err != nil {
		return err
	}

	s.recordMutation(ctx, tenantID, "type", "retire")
	return nil
}

// DeleteType removes a taxonomy type. Values and assignments cascade at
// the schema level, so a deleted type leaves no dangling references.
func (s *Store) DeleteType(ctx context.Context, tenantID string, typeID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM taxonomy_types WHERE tenant_id = $1 AND id = $2`,
		tenantID, typeID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete taxonomy type: %w", err)
	}
	if err := requireRow(result, ErrTypeNotFound); err != nil {
		return err
	}

	s.recordMutation(ctx, tenantID, "type", "delete")
	return nil
}

// CreateValue inserts a new value under a type owned by tenantID
func (s *Store) CreateValue(ctx context.Context, tenantID string, v *TaxonomyValue) error {
	if v.SizeMultiplier == 0 {
		v.SizeMultiplier = 1.0
	}
	if v.SizeMultiplier <= 0 {
		return fmt.Errorf("size multiplier must be positive, got %g", v.SizeMultiplier)
	}

	if _, err := s.GetType(ctx, tenantID, v.TypeID); err != nil {
		return err
	}

	query := `
		INSERT INTO taxonomy_values
			(type_id, slug, label, color, icon, size_multiplier, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		v.TypeID, v.Slug, v.Label, nullString(v.Color), nullString(v.Icon),
		v.SizeMultiplier, v.DisplayOrder,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create taxonomy value: %w", err)
	}

	s.recordMutation(ctx, tenantID, "value", "create")
	return nil
}

// UpdateValue updates a value's mutable fields, scoped to the tenant that
// owns its type
func (s *Store) UpdateValue(ctx context.Context, tenantID string, v *TaxonomyValue) error {
	if v.SizeMultiplier <= 0 {
		return fmt.Errorf("size multiplier must be positive, got %g", v.SizeMultiplier)
	}

	query := `
		UPDATE taxonomy_values v
		SET label = $1, color = $2, icon = $3, size_multiplier = $4,
			display_order = $5, updated_at = NOW()
		FROM taxonomy_types t
		WHERE v.type_id = t.id AND t.tenant_id = $6 AND v.id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		v.Label, nullString(v.Color), nullString(v.Icon), v.SizeMultiplier,
		v.DisplayOrder, tenantID, v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update taxonomy value: %w", err)
	}
	if err := requireRow(result, ErrValueNotFound); err != nil {
		return err
	}

	s.recordMutation(ctx, tenantID, "value", "update")
	return nil
}

// DeleteValue removes a value; its assignments cascade
func (s *Store) DeleteValue(ctx context.Context, tenantID string, valueID int64) error {
	query := `
		DELETE FROM taxonomy_values v
		USING taxonomy_types t
		WHERE v.type_id = t.id AND t.tenant_id = $1 AND v.id = $2
	`
	result, err := s.db.ExecContext(ctx, query, tenantID, valueID)
	if err != nil {
		return fmt.Errorf("failed to delete taxonomy value: %w", err)
	}
	if err := requireRow(result, ErrValueNotFound); err != nil {
		return err
	}

	s.recordMutation(ctx, tenantID, "value", "delete")
	return nil
}

// ListValues retrieves a type's values in display order
func (s *Store) ListValues(ctx context.Context, typeID int64) ([]*TaxonomyValue, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM taxonomy_values
		WHERE type_id = $1
		ORDER BY display_order ASC, id ASC
	`, valueColumns)

	rows, err := s.db.QueryContext(ctx, query, typeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxonomy values: %w", err)
	}
	defer rows.Close()

	return collectValues(rows)
}

// LoadSchema retrieves a tenant's full taxonomy: all types in display
// order with their values attached. Descriptor generation and assignment
// validation both start from this snapshot.
func (s *Store) LoadSchema(ctx context.Context, tenantID string) (*Schema, error) {
	types, err := s.ListTypes(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	schema := &Schema{
		Types:        types,
		ValuesByType: make(map[int64][]*TaxonomyValue),
	}
	if len(types) == 0 {
		return schema, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM taxonomy_values v
		WHERE v.type_id IN (SELECT id FROM taxonomy_types WHERE tenant_id = $1)
		ORDER BY v.display_order ASC, v.id ASC
	`, prefixedValueColumns)

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema values: %w", err)
	}
	defer rows.Close()

	values, err := collectValues(rows)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		schema.ValuesByType[v.TypeID] = append(schema.ValuesByType[v.TypeID], v)
	}

	return schema, nil
}

// ListAssignments retrieves a record's assigned values
func (s *Store) ListAssignments(ctx context.Context, recordID string) ([]*TaxonomyValue, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM taxonomy_values v
		JOIN assignments a ON a.value_id = v.id
		WHERE a.record_id = $1
		ORDER BY v.slug ASC
	`, prefixedValueColumns)

	rows, err := s.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	return collectValues(rows)
}

// ReplaceAssignments atomically replaces a record's assignments for one
// type with the validated value set. Callers run the set through
// ValidateAssignment first; this method only persists.
func (s *Store) ReplaceAssignments(ctx context.Context, recordID string, typeID int64, values []*TaxonomyValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM assignments
		WHERE record_id = $1
			AND value_id IN (SELECT id FROM taxonomy_values WHERE type_id = $2)
	`, recordID, typeID); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}

	for _, v := range values {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO assignments (record_id, value_id) VALUES ($1, $2)`,
			recordID, v.ID,
		); err != nil {
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
	}

	return tx.Commit()
}

// recordMutation bumps the mutation counter and invalidates downstream
// descriptor caches. Runs after the mutation committed.
func (s *Store) recordMutation(ctx context.Context, tenantID, entity, operation string) {
	if s.metrics != nil {
		s.metrics.SchemaMutationsTotal.WithLabelValues(entity, operation).Inc()
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, tenantID); err != nil {
			observability.FromContext(ctx).WithError(err).
				WithField("tenant_id", tenantID).
				Warn("descriptor cache invalidation failed")
		}
	}
}

func scanType(row *sql.Row) (*TaxonomyType, error) {
	t := &TaxonomyType{}
	err := row.Scan(&t.ID, &t.TenantID, &t.Slug, &t.Name, &t.Required, &t.AllowMultiple,
		&t.UsedForFiltering, &t.UsedForMapStyling, &t.DisplayOrder, &t.Status,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get taxonomy type: %w", err)
	}
	return t, nil
}

func scanTypeRow(rows *sql.Rows) (*TaxonomyType, error) {
	t := &TaxonomyType{}
	err := rows.Scan(&t.ID, &t.TenantID, &t.Slug, &t.Name, &t.Required, &t.AllowMultiple,
		&t.UsedForFiltering, &t.UsedForMapStyling, &t.DisplayOrder, &t.Status,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan taxonomy type: %w", err)
	}
	return t, nil
}

func collectValues(rows *sql.Rows) ([]*TaxonomyValue, error) {
	var values []*TaxonomyValue
	for rows.Next() {
		v := &TaxonomyValue{}
		var color, icon sql.NullString
		if err := rows.Scan(&v.ID, &v.TypeID, &v.Slug, &v.Label, &color, &icon,
			&v.SizeMultiplier, &v.DisplayOrder, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan taxonomy value: %w", err)
		}
		v.Color = color.String
		v.Icon = icon.String
		values = append(values, v)
	}
	return values, rows.Err()
}

func requireRow(result sql.Result, missing error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return missing
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
