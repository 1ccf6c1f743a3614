package entities

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a barcode or stock code is absent.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when a unique stock code or location key would collide.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidLayout is returned for an unknown pod type/face combination.
	ErrInvalidLayout = fmt.Errorf("invalid layout: %w", ErrNotFound)
	// ErrValidation is returned for malformed identifiers or out-of-range counts.
	ErrValidation = errors.New("validation error")
	// ErrVersionConflict is returned when a pod document changed underneath a writer.
	ErrVersionConflict = errors.New("version conflict")
)

// UnitError records the failure of one unit (a pod, a feed row) inside a batch
type UnitError struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

// PartialFailure reports a batch where some units succeeded and some failed
type PartialFailure struct {
	Op       string
	Failures []UnitError
}

func (p *PartialFailure) Error() string {
	units := make([]string, 0, len(p.Failures))
	for _, f := range p.Failures {
		units = append(units, f.Unit)
	}
	return fmt.Sprintf("%s: %d unit(s) failed: %s", p.Op, len(p.Failures), strings.Join(units, ", "))
}

// Validationf builds an error that matches ErrValidation
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
