package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"solemate/internal/validation"

	"github.com/google/uuid"
)

var (
	ErrInvalidStatus  = errors.New("invalid product status")
	ErrInvalidSection = errors.New("invalid section")
)

// ValidationError carries every field message of a rejected submission.
// Nothing was written when it is returned.
type ValidationError struct {
	Fields validation.FieldErrors
}

func (e *ValidationError) Error() string {
	fields := e.Fields.Map()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// ConflictError reports a uniqueness collision on a single field
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Field, e.Message)
}

// WriteStep names the orchestration step that failed after the product row landed
type WriteStep string

const (
	StepUploadImages   WriteStep = "upload_images"
	StepInsertImages   WriteStep = "insert_images"
	StepDeleteVariants WriteStep = "delete_variants"
	StepInsertVariants WriteStep = "insert_variants"
)

// PartialWriteError means the product row exists but a dependent write failed.
// The product stays in its current status with whatever landed before Step.
type PartialWriteError struct {
	ProductID uuid.UUID
	Step      WriteStep
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("product %s partially written, failed at %s: %v", e.ProductID, e.Step, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// DeleteFailure means the atomic delete did not run. Nothing was removed.
type DeleteFailure struct {
	ProductID uuid.UUID
	Err       error
}

func (e *DeleteFailure) Error() string {
	return fmt.Sprintf("failed to delete product %s: %v", e.ProductID, e.Err)
}

func (e *DeleteFailure) Unwrap() error {
	return e.Err
}
