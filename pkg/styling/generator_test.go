package styling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityatlas/cityatlas/pkg/taxonomy"
)

func schemaWith(types []*taxonomy.TaxonomyType, values map[int64][]*taxonomy.TaxonomyValue) *taxonomy.Schema {
	if values == nil {
		values = map[int64][]*taxonomy.TaxonomyValue{}
	}
	return &taxonomy.Schema{Types: types, ValuesByType: values}
}

func stylingType(id int64, slug string, order int) *taxonomy.TaxonomyType {
	return &taxonomy.TaxonomyType{
		ID:                id,
		TenantID:          "berlin",
		Slug:              slug,
		Name:              slug,
		UsedForMapStyling: true,
		DisplayOrder:      order,
		Status:            taxonomy.TypeStatusActive,
	}
}

func TestBuildStyleExpression(t *testing.T) {
	schema := schemaWith(
		[]*taxonomy.TaxonomyType{stylingType(1, "category", 0)},
		map[int64][]*taxonomy.TaxonomyValue{
			1: {
				{ID: 10, TypeID: 1, Slug: "park", Label: "Park", Color: "#2e7d32", SizeMultiplier: 1.0},
				{ID: 11, TypeID: 1, Slug: "museum", Label: "Museum", Color: "#6a1b9a", SizeMultiplier: 1.4},
			},
		},
	)

	style := BuildStyleExpression("berlin", schema)
	assert.Equal(t, "category", style.TypeSlug)

	colorRule, ok := style.ColorRule.([]interface{})
	require.True(t, ok)
	assert.Equal(t, "match", colorRule[0])
	assert.Equal(t, []interface{}{"get", "category"}, colorRule[1])
	assert.Equal(t, []interface{}{"park", "#2e7d32", "museum", "#6a1b9a"}, colorRule[2:6])
	assert.Equal(t, DefaultColor, colorRule[len(colorRule)-1], "last element is the neutral fallback")

	sizeRule, ok := style.SizeRule.([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"park", 1.0, "museum", 1.4}, sizeRule[2:6])
	assert.Equal(t, DefaultSizeMultiplier, sizeRule[len(sizeRule)-1])
}

func TestBuildStyleExpression_NoStylingType(t *testing.T) {
	schema := schemaWith([]*taxonomy.TaxonomyType{
		{ID: 1, TenantID: "berlin", Slug: "amenities", UsedForFiltering: true, Status: taxonomy.TypeStatusActive},
	}, nil)

	style := BuildStyleExpression("berlin", schema)
	assert.Empty(t, style.TypeSlug)
	assert.Equal(t, DefaultColor, style.ColorRule)
	assert.Equal(t, DefaultSizeMultiplier, style.SizeRule)
}

func TestBuildStyleExpression_EmptySchema(t *testing.T) {
	style := BuildStyleExpression("berlin", schemaWith(nil, nil))
	assert.Equal(t, DefaultColor, style.ColorRule)
	assert.Equal(t, DefaultSizeMultiplier, style.SizeRule)
}

func TestBuildStyleExpression_FirstActiveStylingTypeWins(t *testing.T) {
	retired := stylingType(1, "legacy", 0)
	retired.Status = taxonomy.TypeStatusRetired
	second := stylingType(2, "category", 1)

	schema := schemaWith(
		[]*taxonomy.TaxonomyType{retired, second},
		map[int64][]*taxonomy.TaxonomyValue{
			2: {{ID: 20, TypeID: 2, Slug: "park", Color: "#2e7d32", SizeMultiplier: 1.0}},
		},
	)

	style := BuildStyleExpression("berlin", schema)
	assert.Equal(t, "category", style.TypeSlug, "retired types never drive styling")
}

func TestBuildStyleExpression_ValueWithoutColor(t *testing.T) {
	schema := schemaWith(
		[]*taxonomy.TaxonomyType{stylingType(1, "category", 0)},
		map[int64][]*taxonomy.TaxonomyValue{
			1: {{ID: 10, TypeID: 1, Slug: "misc", SizeMultiplier: 1.0}},
		},
	)

	colorRule := BuildStyleExpression("berlin", schema).ColorRule.([]interface{})
	assert.Equal(t, []interface{}{"misc", DefaultColor}, colorRule[2:4])
}

func TestBuildFilterDescriptors(t *testing.T) {
	category := stylingType(1, "category", 0)
	category.UsedForFiltering = true
	amenities := &taxonomy.TaxonomyType{
		ID: 2, TenantID: "berlin", Slug: "amenities", Name: "Amenities",
		UsedForFiltering: true, DisplayOrder: 1, Status: taxonomy.TypeStatusActive,
	}
	internal := &taxonomy.TaxonomyType{
		ID: 3, TenantID: "berlin", Slug: "internal", Name: "Internal",
		DisplayOrder: 2, Status: taxonomy.TypeStatusActive,
	}
	retired := &taxonomy.TaxonomyType{
		ID: 4, TenantID: "berlin", Slug: "legacy", Name: "Legacy",
		UsedForFiltering: true, DisplayOrder: 3, Status: taxonomy.TypeStatusRetired,
	}

	schema := schemaWith(
		[]*taxonomy.TaxonomyType{category, amenities, internal, retired},
		map[int64][]*taxonomy.TaxonomyValue{
			1: {{ID: 10, TypeID: 1, Slug: "park", Label: "Park", Color: "#2e7d32"}},
			2: {{ID: 20, TypeID: 2, Slug: "wifi", Label: "Wi-Fi", Icon: "wifi"}},
		},
	)

	filters := BuildFilterDescriptors(schema)
	require.Len(t, filters, 2, "only active filtering-enabled types appear")
	assert.Equal(t, "category", filters[0].TypeSlug)
	assert.Equal(t, "amenities", filters[1].TypeSlug)
	require.Len(t, filters[0].Values, 1)
	assert.Equal(t, "#2e7d32", filters[0].Values[0].Color)
	assert.Equal(t, "wifi", filters[1].Values[0].Icon)
}

func TestBuildFilterDescriptors_EmptySchema(t *testing.T) {
	filters := BuildFilterDescriptors(schemaWith(nil, nil))
	assert.NotNil(t, filters)
	assert.Empty(t, filters)
}
