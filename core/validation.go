package core

import "fmt"

// ValidateVector checks an EmbeddingVector before it is written.
//
// Validation rules:
//   - ID must not be empty
//   - Values must not be empty
//   - len(Values) must equal dimension when dimension > 0
func ValidateVector(v EmbeddingVector, dimension int) error {
	if v.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidVector, ErrEmptyID)
	}
	if len(v.Values) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidVector, ErrEmptyValues)
	}
	if dimension > 0 && len(v.Values) != dimension {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrInvalidVector, ErrDimensionMismatch, len(v.Values), dimension)
	}
	return nil
}

// ValidateVectors runs ValidateVector over a batch and reports the first
// offending position.
func ValidateVectors(vectors []EmbeddingVector, dimension int) error {
	for i, v := range vectors {
		if err := ValidateVector(v, dimension); err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
	}
	return nil
}
