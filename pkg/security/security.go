// Package security provides validation, sanitization, and limits for the workbench jobs packages.
package security

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

// Security limits and configuration
const (
	// MaxParametersSize is the maximum encoded size in bytes of a job's parameters (1MB)
	MaxParametersSize = 1 << 20

	// MaxErrorMessageLength is the maximum length for error messages returned to callers
	MaxErrorMessageLength = 4096

	// MaxPathLength is the maximum length of a stored file_path
	MaxPathLength = 1024
)

// ValidateJobType validates a job type against the closed set of kinds.
func ValidateJobType(t core.JobType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidJobType, t)
	}
	return nil
}

// ValidateParameters checks that params encode to JSON within the size limit.
func ValidateParameters(params map[string]any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	if len(raw) > MaxParametersSize {
		return core.ErrParametersTooLarge
	}
	return nil
}

// ResolveManagedPath joins rel onto root and verifies the result stays
// inside root. Absolute paths are accepted only when already inside root.
func ResolveManagedPath(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", core.ErrPathOutsideDataDir)
	}
	if len(rel) > MaxPathLength {
		return "", fmt.Errorf("%w: path too long", core.ErrPathOutsideDataDir)
	}
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(cleanRoot, filepath.FromSlash(rel))
	}
	target = filepath.Clean(target)

	within, err := filepath.Rel(cleanRoot, target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrPathOutsideDataDir, rel)
	}
	if within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", core.ErrPathOutsideDataDir, rel)
	}
	return target, nil
}

// SanitizeErrorMessage truncates and sanitizes error messages before they
// cross the command boundary.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}
