// Package normalization maps loosely written configuration strings onto typed
// enumerations.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer resolves trimmed, case-folded strings to values of T.
type Normalizer[T comparable] struct {
	values   map[string]T
	fallback T
	keys     []string
}

// NewNormalizer builds a normalizer; keys of values are folded the same way
// as the input will be.
func NewNormalizer[T comparable](values map[string]T, fallback T) *Normalizer[T] {
	n := &Normalizer[T]{values: make(map[string]T, len(values)), fallback: fallback}
	for k, v := range values {
		k = fold(k)
		n.values[k] = v
		n.keys = append(n.keys, k)
	}
	sort.Strings(n.keys)
	return n
}

// Normalize returns the value for raw, or the fallback when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[fold(raw)]; ok {
		return v
	}
	return n.fallback
}

// NormalizeWithError is Normalize that reports unknown input.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if v, ok := n.values[fold(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.keys)
}

// ValidKeys lists the accepted spellings in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	return append([]string(nil), n.keys...)
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
