package normalization

import "fmt"

// EnumNormalizer is a Normalizer that names the field in its errors.
type EnumNormalizer[T comparable] struct {
	*Normalizer[T]
	field string
}

func NewEnumNormalizer[T comparable](field string, values map[string]T, fallback T) *EnumNormalizer[T] {
	return &EnumNormalizer[T]{Normalizer: NewNormalizer(values, fallback), field: field}
}

// NormalizeWithValidation returns an error naming the field for unknown input.
func (e *EnumNormalizer[T]) NormalizeWithValidation(raw string) (T, error) {
	v, err := e.NormalizeWithError(raw)
	if err != nil {
		return v, fmt.Errorf("invalid %s: %w", e.field, err)
	}
	return v, nil
}
