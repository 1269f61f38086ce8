package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for failure classification. Every error that crosses a
// stage boundary is wrapped with exactly one of these so the coordinator and
// the CLI can branch on kind without string matching.
var (
	ErrNotFound          = errors.New("not found")
	ErrPermission        = errors.New("permission denied")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInsufficientSpace = errors.New("insufficient space")
	ErrIntegrity         = errors.New("integrity failure")
	ErrMetadataCorrupt   = errors.New("metadata corrupt")
	ErrToolUnavailable   = errors.New("external tool unavailable")
	ErrCancelled         = errors.New("cancelled")
	ErrTransient         = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker. The marker should be one of the exported sentinel
// errors above; nil defaults to ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err is tagged for automatic retry. Semantic
// failures (bad hash, insufficient redundancy, missing tools) are never
// transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Classify maps context cancellation onto the Cancelled marker so callers can
// treat user interruption uniformly with other failure kinds.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if !errors.Is(err, ErrCancelled) {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}
	return err
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
