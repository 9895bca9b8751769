package taxonomy

import "time"

// TypeStatus is the lifecycle state of a taxonomy type.
// Creation lands directly in active; retire soft-disables the type for new
// assignments while existing data stays queryable.
type TypeStatus string

const (
	TypeStatusDraft   TypeStatus = "draft"
	TypeStatusActive  TypeStatus = "active"
	TypeStatusRetired TypeStatus = "retired"
)

// TaxonomyType is a tenant-defined classification axis for map records.
// The behavior flags are a closed set of columns, not an open property
// map: new behaviors require a schema change, which keeps validation and
// descriptor generation exhaustive.
type TaxonomyType struct {
	ID                int64      `json:"id"`
	TenantID          string     `json:"tenant_id"`
	Slug              string     `json:"slug"`
	Name              string     `json:"name"`
	Required          bool       `json:"required"`
	AllowMultiple     bool       `json:"allow_multiple"`
	UsedForFiltering  bool       `json:"used_for_filtering"`
	UsedForMapStyling bool       `json:"used_for_map_styling"`
	DisplayOrder      int        `json:"display_order"`
	Status            TypeStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Active reports whether the type participates in new assignments and
// descriptor generation
func (t *TaxonomyType) Active() bool {
	return t.Status == TypeStatusActive
}

// TaxonomyValue is one selectable value of a taxonomy type
type TaxonomyValue struct {
	ID             int64     `json:"id"`
	TypeID         int64     `json:"type_id"`
	Slug           string    `json:"slug"`
	Label          string    `json:"label"`
	Color          string    `json:"color,omitempty"`
	Icon           string    `json:"icon,omitempty"`
	SizeMultiplier float64   `json:"size_multiplier"`
	DisplayOrder   int       `json:"display_order"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Assignment links a record to a taxonomy value
type Assignment struct {
	RecordID  string    `json:"record_id"`
	ValueID   int64     `json:"value_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Record identifies a tenant-owned map record for validation purposes.
// The content platform owns the full record; the validator only needs its
// identity and tenant scope.
type Record struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
}

// Schema is a tenant's full taxonomy loaded in one shot: types in display
// order with their values attached, also in display order.
type Schema struct {
	Types        []*TaxonomyType           `json:"types"`
	ValuesByType map[int64][]*TaxonomyValue `json:"values_by_type"`
}
