package taxonomy

import (
	"errors"
	"fmt"
)

// ErrTypeNotFound is returned when a taxonomy type does not exist within
// the tenant's scope
var ErrTypeNotFound = errors.New("taxonomy type not found")

// ErrValueNotFound is returned when a taxonomy value does not exist
var ErrValueNotFound = errors.New("taxonomy value not found")

// ErrDuplicateSlug is returned when a type or value slug collides within
// its uniqueness scope
var ErrDuplicateSlug = errors.New("slug already in use")

// ErrTypeRetired is returned when a new assignment targets a retired type.
// Existing assignments against retired types stay readable.
var ErrTypeRetired = errors.New("taxonomy type is retired")

// CardinalityError is returned when multiple values are assigned for a
// single-valued type
type CardinalityError struct {
	TypeSlug string
	Count    int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("type %q allows a single value, got %d", e.TypeSlug, e.Count)
}

// IsCardinalityError checks if an error is a cardinality violation
func IsCardinalityError(err error) bool {
	var e *CardinalityError
	return errors.As(err, &e)
}

// MissingRequiredError is returned at record finalization when a required
// active type has no assigned value
type MissingRequiredError struct {
	TypeSlug string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("required type %q has no assigned value", e.TypeSlug)
}

// IsMissingRequiredError checks if an error is a missing-required violation
func IsMissingRequiredError(err error) bool {
	var e *MissingRequiredError
	return errors.As(err, &e)
}

// CrossScopeError is returned when an assignment reaches across tenant or
// type boundaries: a value from another type, or a type from another
// tenant
type CrossScopeError struct {
	TypeSlug  string
	ValueSlug string
	Detail    string
}

func (e *CrossScopeError) Error() string {
	if e.ValueSlug != "" {
		return fmt.Sprintf("value %q is out of scope for type %q: %s", e.ValueSlug, e.TypeSlug, e.Detail)
	}
	return fmt.Sprintf("type %q is out of scope: %s", e.TypeSlug, e.Detail)
}

// IsCrossScopeError checks if an error is a cross-scope violation
func IsCrossScopeError(err error) bool {
	var e *CrossScopeError
	return errors.As(err, &e)
}
