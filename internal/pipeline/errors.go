package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks operations against an image or folder that is absent
	// from the catalog. Reported to the caller, never retried automatically.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedMedia marks uploads rejected before any state change.
	ErrUnsupportedMedia = errors.New("unsupported media")

	// ErrRenderFailed marks a non-zero exit from the external renderer. The
	// catalog is untouched and the operation is safe to retry.
	ErrRenderFailed = errors.New("render failed")

	// ErrPartialCleanup marks a non-missing filesystem error while removing
	// an image's original file. The whole delete aborts with the catalog
	// unchanged; retrying is safe.
	ErrPartialCleanup = errors.New("partial cleanup failure")
)

// Wrap tags an error with a sentinel marker plus operation context so the
// calling layer can classify it with errors.Is and still render a useful
// message (operation, identifier, underlying cause).
func Wrap(marker error, operation, subject string, err error) error {
	detail := buildDetail(operation, subject)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(operation, subject string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if subject = strings.TrimSpace(subject); subject != "" {
		parts = append(parts, subject)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
