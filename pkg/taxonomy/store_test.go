package taxonomy

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	tenants []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, tenantID string) error {
	r.tenants = append(r.tenants, tenantID)
	return nil
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *recordingInvalidator) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	inv := &recordingInvalidator{}
	return NewStore(db, inv, nil), mock, inv
}

func typeRows(id int64, tenantID, slug string, status TypeStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "slug", "name", "required", "allow_multiple",
		"used_for_filtering", "used_for_map_styling", "display_order", "status",
		"created_at", "updated_at",
	}).AddRow(id, tenantID, slug, slug, false, false, true, false, 0, string(status), now, now)
}

func TestStore_CreateType(t *testing.T) {
	store, mock, inv := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO taxonomy_types`).
		WithArgs("berlin", "category", "Category", true, false, true, true, 0, "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))

	typ := &TaxonomyType{
		TenantID:          "berlin",
		Slug:              "category",
		Name:              "Category",
		Required:          true,
		UsedForFiltering:  true,
		UsedForMapStyling: true,
	}
	require.NoError(t, store.CreateType(context.Background(), typ))
	assert.Equal(t, int64(1), typ.ID)
	assert.Equal(t, TypeStatusActive, typ.Status)
	assert.Equal(t, []string{"berlin"}, inv.tenants, "schema mutation must invalidate the tenant's descriptors")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateTypeDuplicateSlug(t *testing.T) {
	store, mock, inv := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO taxonomy_types`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateType(context.Background(), &TaxonomyType{TenantID: "berlin", Slug: "category", Name: "Category"})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
	assert.Empty(t, inv.tenants, "failed mutation must not invalidate")
}

func TestStore_RetireType(t *testing.T) {
	store, mock, inv := newMockStore(t)

	mock.ExpectExec(`UPDATE taxonomy_types SET status`).
		WithArgs("retired", "berlin", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RetireType(context.Background(), "berlin", 1))
	assert.Equal(t, []string{"berlin"}, inv.tenants)
}

func TestStore_RetireTypeMissing(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec(`UPDATE taxonomy_types SET status`).
		WithArgs("retired", "berlin", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RetireType(context.Background(), "berlin", 99)
	assert.ErrorIs(t, err, ErrTypeNotFound)
}

func TestStore_CreateValue(t *testing.T) {
	store, mock, inv := newMockStore(t)

	mock.ExpectQuery(`SELECT id, tenant_id, slug`).
		WithArgs("berlin", int64(1)).
		WillReturnRows(typeRows(1, "berlin", "category", TypeStatusActive))

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO taxonomy_values`).
		WithArgs(int64(1), "park", "Park", "#2e7d32", sqlmock.AnyArg(), 1.0, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))

	v := &TaxonomyValue{TypeID: 1, Slug: "park", Label: "Park", Color: "#2e7d32"}
	require.NoError(t, store.CreateValue(context.Background(), "berlin", v))
	assert.Equal(t, int64(10), v.ID)
	assert.Equal(t, 1.0, v.SizeMultiplier, "size multiplier defaults to neutral")
	assert.Equal(t, []string{"berlin"}, inv.tenants)
}

func TestStore_CreateValueWrongTenant(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectQuery(`SELECT id, tenant_id, slug`).
		WithArgs("paris", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "slug", "name", "required", "allow_multiple",
			"used_for_filtering", "used_for_map_styling", "display_order", "status",
			"created_at", "updated_at",
		}))

	v := &TaxonomyValue{TypeID: 1, Slug: "park", Label: "Park"}
	err := store.CreateValue(context.Background(), "paris", v)
	assert.ErrorIs(t, err, ErrTypeNotFound)
}

func TestStore_CreateValueRejectsNonPositiveMultiplier(t *testing.T) {
	store, _, _ := newMockStore(t)

	v := &TaxonomyValue{TypeID: 1, Slug: "park", Label: "Park", SizeMultiplier: -0.5}
	err := store.CreateValue(context.Background(), "berlin", v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size multiplier must be positive")
}

func TestStore_LoadSchema(t *testing.T) {
	store, mock, _ := newMockStore(t)

	now := time.Now()
	types := sqlmock.NewRows([]string{
		"id", "tenant_id", "slug", "name", "required", "allow_multiple",
		"used_for_filtering", "used_for_map_styling", "display_order", "status",
		"created_at", "updated_at",
	}).
		AddRow(1, "berlin", "category", "Category", true, false, true, true, 0, "active", now, now).
		AddRow(2, "berlin", "amenities", "Amenities", false, true, true, false, 1, "active", now, now)

	mock.ExpectQuery(`SELECT id, tenant_id, slug`).
		WithArgs("berlin").
		WillReturnRows(types)

	values := sqlmock.NewRows([]string{
		"id", "type_id", "slug", "label", "color", "icon", "size_multiplier",
		"display_order", "created_at", "updated_at",
	}).
		AddRow(10, 1, "park", "Park", "#2e7d32", nil, 1.0, 0, now, now).
		AddRow(11, 1, "museum", "Museum", "#6a1b9a", nil, 1.2, 1, now, now).
		AddRow(20, 2, "wifi", "Wi-Fi", nil, "wifi", 1.0, 0, now, now)

	mock.ExpectQuery(`SELECT v.id, v.type_id, v.slug`).
		WithArgs("berlin").
		WillReturnRows(values)

	schema, err := store.LoadSchema(context.Background(), "berlin")
	require.NoError(t, err)
	require.Len(t, schema.Types, 2)
	assert.Len(t, schema.ValuesByType[1], 2)
	assert.Len(t, schema.ValuesByType[2], 1)
	assert.Equal(t, "park", schema.ValuesByType[1][0].Slug)
}

func TestStore_ReplaceAssignments(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM assignments`).
		WithArgs("rec-1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO assignments`).
		WithArgs("rec-1", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO assignments`).
		WithArgs("rec-1", int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.ReplaceAssignments(context.Background(), "rec-1", 1, []*TaxonomyValue{
		{ID: 10}, {ID: 11},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
