package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Seed is a declarative taxonomy definition loaded at city onboarding.
// It goes through the same store paths as the API, so seed files cannot
// create schemas the closed type set would reject.
type Seed struct {
	Types []SeedType `yaml:"types"`
}

// SeedType declares one taxonomy type and its values
type SeedType struct {
	Slug              string      `yaml:"slug"`
	Name              string      `yaml:"name"`
	Required          bool        `yaml:"required"`
	AllowMultiple     bool        `yaml:"allow_multiple"`
	UsedForFiltering  bool        `yaml:"used_for_filtering"`
	UsedForMapStyling bool        `yaml:"used_for_map_styling"`
	Values            []SeedValue `yaml:"values"`
}

// SeedValue declares one value of a seeded type
type SeedValue struct {
	Slug           string  `yaml:"slug"`
	Label          string  `yaml:"label"`
	Color          string  `yaml:"color"`
	Icon           string  `yaml:"icon"`
	SizeMultiplier float64 `yaml:"size_multiplier"`
}

// LoadSeed parses a YAML taxonomy seed definition
func LoadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy seed: %w", err)
	}

	for i, t := range seed.Types {
		if t.Slug == "" {
			return nil, fmt.Errorf("seed type %d has no slug", i)
		}
		if t.Name == "" {
			return nil, fmt.Errorf("seed type %q has no name", t.Slug)
		}
		for _, v := range t.Values {
			if v.Slug == "" {
				return nil, fmt.Errorf("seed type %q has a value with no slug", t.Slug)
			}
			if v.Label == "" {
				return nil, fmt.Errorf("seed value %q has no label", v.Slug)
			}
			if v.SizeMultiplier < 0 {
				return nil, fmt.Errorf("seed value %q has a negative size multiplier", v.Slug)
			}
		}
	}

	return &seed, nil
}

// ImportSeed creates the seed's types and values for a tenant. Display
// order follows seed file order. A type slug that already exists is
// skipped entirely, so re-importing a seed never disturbs a schema the
// tenant has since edited; within a fresh type a duplicate value slug
// still surfaces as ErrDuplicateSlug.
func (s *Store) ImportSeed(ctx context.Context, tenantID string, seed *Seed) error {
	for order, st := range seed.Types {
		if existing, err := s.GetTypeBySlug(ctx, tenantID, st.Slug); err != nil && !errors.Is(err, ErrTypeNotFound) {
			return fmt.Errorf("seed type %q: %w", st.Slug, err)
		} else if existing != nil {
			continue
		}

		typ := &TaxonomyType{
			TenantID:          tenantID,
			Slug:              st.Slug,
			Name:              st.Name,
			Required:          st.Required,
			AllowMultiple:     st.AllowMultiple,
			UsedForFiltering:  st.UsedForFiltering,
			UsedForMapStyling: st.UsedForMapStyling,
			DisplayOrder:      order,
		}
		if err := s.CreateType(ctx, typ); err != nil {
			return fmt.Errorf("seed type %q: %w", st.Slug, err)
		}

		for valueOrder, sv := range st.Values {
			value := &TaxonomyValue{
				TypeID:         typ.ID,
				Slug:           sv.Slug,
				Label:          sv.Label,
				Color:          sv.Color,
				Icon:           sv.Icon,
				SizeMultiplier: sv.SizeMultiplier,
				DisplayOrder:   valueOrder,
			}
			if err := s.CreateValue(ctx, tenantID, value); err != nil {
				return fmt.Errorf("seed value %q of type %q: %w", sv.Slug, st.Slug, err)
			}
		}
	}

	return nil
}
