package styling

import (
	"context"

	"github.com/cityatlas/cityatlas/pkg/observability"
	"github.com/cityatlas/cityatlas/pkg/taxonomy"
)

// SchemaLoader loads a tenant's taxonomy snapshot
type SchemaLoader interface {
	LoadSchema(ctx context.Context, tenantID string) (*taxonomy.Schema, error)
}

// Generator produces rendering descriptors from a tenant's taxonomy.
// Descriptors are cached per tenant; the cache is invalidated on every
// schema mutation, so a cached descriptor is never stale. A cache outage
// degrades to regeneration from the store.
type Generator struct {
	schemas SchemaLoader
	cache   *Cache
	metrics *observability.Metrics
}

// NewGenerator creates a descriptor generator. cache and metrics may be nil.
func NewGenerator(schemas SchemaLoader, cache *Cache, metrics *observability.Metrics) *Generator {
	return &Generator{schemas: schemas, cache: cache, metrics: metrics}
}

// GenerateStyleExpression returns the tenant's style descriptor. The first
// active styling-enabled type in display order drives color and size; a
// tenant with no such type gets the fixed neutral rules, never an error.
func (g *Generator) GenerateStyleExpression(ctx context.Context, tenantID string) (*StyleExpression, error) {
	if g.cache != nil {
		if style, ok := g.cache.GetStyle(ctx, tenantID); ok {
			g.recordCacheHit()
			return style, nil
		}
		g.recordCacheMiss()
	}

	schema, err := g.schemas.LoadSchema(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	style := BuildStyleExpression(tenantID, schema)
	if g.cache != nil {
		g.cache.SetStyle(ctx, tenantID, style)
	}

	return style, nil
}

// GenerateFilterDescriptors returns one filter control per active
// filtering-enabled type, in display order
func (g *Generator) GenerateFilterDescriptors(ctx context.Context, tenantID string) ([]FilterDescriptor, error) {
	if g.cache != nil {
		if filters, ok := g.cache.GetFilters(ctx, tenantID); ok {
			g.recordCacheHit()
			return filters, nil
		}
		g.recordCacheMiss()
	}

	schema, err := g.schemas.LoadSchema(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	filters := BuildFilterDescriptors(schema)
	if g.cache != nil {
		g.cache.SetFilters(ctx, tenantID, filters)
	}

	return filters, nil
}

// BuildStyleExpression is the pure descriptor builder over a loaded schema
func BuildStyleExpression(tenantID string, schema *taxonomy.Schema) *StyleExpression {
	var styling *taxonomy.TaxonomyType
	for _, typ := range schema.Types {
		if typ.Active() && typ.UsedForMapStyling {
			styling = typ
			break
		}
	}

	if styling == nil {
		return &StyleExpression{
			TenantID:  tenantID,
			ColorRule: DefaultColor,
			SizeRule:  DefaultSizeMultiplier,
		}
	}

	property := []interface{}{"get", styling.Slug}

	colorRule := []interface{}{"match", property}
	sizeRule := []interface{}{"match", property}
	for _, v := range schema.ValuesByType[styling.ID] {
		color := v.Color
		if color == "" {
			color = DefaultColor
		}
		colorRule = append(colorRule, v.Slug, color)
		sizeRule = append(sizeRule, v.Slug, v.SizeMultiplier)
	}
	colorRule = append(colorRule, DefaultColor)
	sizeRule = append(sizeRule, DefaultSizeMultiplier)

	return &StyleExpression{
		TenantID:  tenantID,
		TypeSlug:  styling.Slug,
		ColorRule: colorRule,
		SizeRule:  sizeRule,
	}
}

// BuildFilterDescriptors is the pure filter builder over a loaded schema
func BuildFilterDescriptors(schema *taxonomy.Schema) []FilterDescriptor {
	filters := make([]FilterDescriptor, 0)
	for _, typ := range schema.Types {
		if !typ.Active() || !typ.UsedForFiltering {
			continue
		}

		fd := FilterDescriptor{
			TypeSlug: typ.Slug,
			Label:    typ.Name,
			Values:   make([]FilterValue, 0, len(schema.ValuesByType[typ.ID])),
		}
		for _, v := range schema.ValuesByType[typ.ID] {
			fd.Values = append(fd.Values, FilterValue{
				Slug:  v.Slug,
				Label: v.Label,
				Color: v.Color,
				Icon:  v.Icon,
			})
		}
		filters = append(filters, fd)
	}

	return filters
}

func (g *Generator) recordCacheHit() {
	if g.metrics != nil {
		g.metrics.DescriptorCacheHitsTotal.Inc()
	}
}

func (g *Generator) recordCacheMiss() {
	if g.metrics != nil {
		g.metrics.DescriptorCacheMissesTotal.Inc()
	}
}
