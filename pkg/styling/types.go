package styling

// Neutral fallbacks applied when a record's styling value is absent or no
// styling type exists. Fixed platform-wide so every map renders the same
// "unstyled" look.
const (
	DefaultColor          = "#8c8c8c"
	DefaultSizeMultiplier = 1.0
)

// StyleExpression is the declarative styling descriptor for one tenant's
// map layer. The rules are MapLibre-style match expressions, JSON-ready;
// no rendering happens server-side.
type StyleExpression struct {
	TenantID string `json:"tenant_id"`
	// TypeSlug is the taxonomy type driving the rules; empty when the
	// tenant has no styling type and the fixed defaults apply.
	TypeSlug  string      `json:"type_slug,omitempty"`
	ColorRule interface{} `json:"color_rule"`
	SizeRule  interface{} `json:"size_rule"`
}

// FilterDescriptor describes one filter control for the map UI: a
// taxonomy type and its selectable values in display order.
type FilterDescriptor struct {
	TypeSlug string        `json:"type_slug"`
	Label    string        `json:"label"`
	Values   []FilterValue `json:"values"`
}

// FilterValue is one selectable option of a filter control
type FilterValue struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}
