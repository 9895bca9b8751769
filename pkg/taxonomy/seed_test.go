package taxonomy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
types:
  - slug: category
    name: Category
    required: true
    used_for_filtering: true
    used_for_map_styling: true
    values:
      - slug: park
        label: Park
        color: "#2e7d32"
      - slug: museum
        label: Museum
        color: "#6a1b9a"
        size_multiplier: 1.2
  - slug: amenities
    name: Amenities
    allow_multiple: true
    used_for_filtering: true
    values:
      - slug: wifi
        label: Wi-Fi
        icon: wifi
`

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, seed.Types, 2)

	category := seed.Types[0]
	assert.Equal(t, "category", category.Slug)
	assert.True(t, category.Required)
	assert.False(t, category.AllowMultiple)
	require.Len(t, category.Values, 2)
	assert.Equal(t, 1.2, category.Values[1].SizeMultiplier)

	amenities := seed.Types[1]
	assert.True(t, amenities.AllowMultiple)
	assert.Equal(t, "wifi", amenities.Values[0].Icon)
}

func TestLoadSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"type without slug", "types:\n  - name: Category\n"},
		{"type without name", "types:\n  - slug: category\n"},
		{"value without label", "types:\n  - slug: c\n    name: C\n    values:\n      - slug: park\n"},
		{"unknown field", "types:\n  - slug: c\n    name: C\n    colour: red\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestStore_ImportSeed(t *testing.T) {
	store, mock, inv := newMockStore(t)

	seed, err := LoadSeed(strings.NewReader(`
types:
  - slug: category
    name: Category
    values:
      - slug: park
        label: Park
`))
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, tenant_id, slug.* WHERE tenant_id = \$1 AND slug = \$2`).
		WithArgs("berlin", "category").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO taxonomy_types`).
		WithArgs("berlin", "category", "Category", false, false, false, false, 0, "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectQuery(`SELECT id, tenant_id, slug`).
		WithArgs("berlin", int64(1)).
		WillReturnRows(typeRows(1, "berlin", "category", TypeStatusActive))
	mock.ExpectQuery(`INSERT INTO taxonomy_values`).
		WithArgs(int64(1), "park", "Park", sqlmock.AnyArg(), sqlmock.AnyArg(), 1.0, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))

	require.NoError(t, store.ImportSeed(context.Background(), "berlin", seed))
	assert.Equal(t, []string{"berlin", "berlin"}, inv.tenants)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ImportSeed_SkipsExistingTypes(t *testing.T) {
	store, mock, inv := newMockStore(t)

	seed, err := LoadSeed(strings.NewReader(`
types:
  - slug: category
    name: Category
    values:
      - slug: park
        label: Park
`))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, tenant_id, slug.* WHERE tenant_id = \$1 AND slug = \$2`).
		WithArgs("berlin", "category").
		WillReturnRows(typeRows(1, "berlin", "category", TypeStatusActive))

	require.NoError(t, store.ImportSeed(context.Background(), "berlin", seed))
	assert.Empty(t, inv.tenants, "skipped types must not invalidate descriptors")
	require.NoError(t, mock.ExpectationsWereMet())
}
