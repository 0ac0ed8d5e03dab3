package risk

import "fmt"

// InsufficientDataError is returned when too few valid records remain after
// normalization for clustering to mean anything. The call produces no
// partial result.
type InsufficientDataError struct {
	Valid   int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d valid records, minimum %d", e.Valid, e.Minimum)
}

// ConfigurationError is returned before any clustering work begins when the
// supplied parameters violate their constraints.
type ConfigurationError struct {
	Field  string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Detail)
}
