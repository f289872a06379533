// Package security implements C2: the raw-params gate and per-parameter
// validators applied to every tools/call before a handler runs.
package security

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/logger"
)

var secLog = logger.New("security")

// ValidationError is the typed outcome of a failed validation. The
// validator never panics or returns a bare Go error across the dispatch
// boundary (§4.3); every failure surfaces as one of these, with a stable,
// user-facing Message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func fail(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// dangerousPatterns detect command substitution, shell redirection, null
// bytes, dangerous URI schemes, and path traversal (including a common
// URL-encoded variant) anywhere in the raw serialized params.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile("`"),
	regexp.MustCompile(`\$\(`),
	regexp.MustCompile(`[;&|]\s*(rm|curl|wget|nc|bash|sh)\b`),
	regexp.MustCompile(`>\s*/dev/`),
	regexp.MustCompile(`\x00`),
	regexp.MustCompile(`(?i)(file|javascript|data):`),
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`\.\.%2[fF]`),
	regexp.MustCompile(`%2e%2e`),
}

// ValidateRawParams is the first security gate (§4.3): it runs against
// the serialized tools/call params object before any deserialization into
// a typed argument struct, rejecting oversized payloads and anything that
// looks like an injection attempt.
func ValidateRawParams(raw json.RawMessage) *ValidationError {
	if len(raw) > constants.MaxJSONParamsBytes {
		secLog.Printf("rejecting params: size=%d exceeds cap=%d", len(raw), constants.MaxJSONParamsBytes)
		return fail("JSON params exceed size limit")
	}

	text := string(raw)
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(text) {
			secLog.Printf("rejecting params: matched dangerous pattern %s", pattern.String())
			return fail("Dangerous pattern detected in JSON params")
		}
	}

	return nil
}

// ValidateString enforces the generic string length cap (§4.3).
// ValidateString is idempotent: calling it again on an already-valid
// string is a no-op that returns nil again (§8).
func ValidateString(field, value string) *ValidationError {
	if len(value) > constants.MaxStringLength {
		return fail("Invalid %s: exceeds maximum length of %d characters", field, constants.MaxStringLength)
	}
	return nil
}

// ValidateQuery enforces the tighter query-string cap used by search
// tools.
func ValidateQuery(field, value string) *ValidationError {
	if len(value) > constants.MaxQueryLength {
		return fail("Invalid %s: exceeds maximum query length of %d characters", field, constants.MaxQueryLength)
	}
	return nil
}

// ValidateArray enforces the array length cap (§4.3).
func ValidateArray(field string, items []string) *ValidationError {
	if len(items) > constants.MaxArrayLength {
		return fail("Invalid %s: array exceeds maximum length of %d", field, constants.MaxArrayLength)
	}
	return nil
}

var extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// ValidateExtension enforces the file-extension shape and blocklist
// (§4.3).
func ValidateExtension(ext string) *ValidationError {
	if !extensionPattern.MatchString(ext) {
		return fail("Invalid file extension: %q does not match the expected pattern", ext)
	}
	trimmed := strings.ToLower(strings.TrimPrefix(ext, "."))
	if constants.BlockedExtensions[trimmed] {
		return fail("Invalid file extension: %q is not permitted", ext)
	}
	return nil
}

// ValidatePath normalizes path and checks it against every structural
// rule in §4.3: it must remain under root after normalization, its depth
// must not exceed MaxPathDepth, and it must not resolve into a blocked
// system prefix unless root itself already lies beneath that prefix.
// Returns the cleaned, absolute path on success.
func ValidatePath(root, path string) (string, *ValidationError) {
	if strings.ContainsAny(path, "\x00") {
		return "", fail("Invalid path: contains a null byte")
	}
	if strings.Contains(path, "..") {
		return "", fail("Invalid path: path traversal sequence detected")
	}

	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(root, path))
	}

	rootClean := filepath.Clean(root)
	if abs != rootClean && !strings.HasPrefix(abs, rootClean+string(filepath.Separator)) {
		return "", fail("Invalid path: escapes project root")
	}

	depth := strings.Count(strings.TrimPrefix(abs, rootClean), string(filepath.Separator))
	if depth > constants.MaxPathDepth {
		return "", fail("Invalid path: depth %d exceeds maximum of %d", depth, constants.MaxPathDepth)
	}

	for _, prefix := range constants.BlockedSystemPrefixes {
		if pathUnderPrefix(abs, prefix) && !pathUnderPrefix(rootClean, prefix) {
			return "", fail("Invalid path: resolves into blocked system location %s", prefix)
		}
	}

	return abs, nil
}

func pathUnderPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// ValidateInt performs the integer bound check called for in §4.3.
// Callers that parsed args via encoding/json already get the type check
// (for booleans as well as integers) from Go's type system, so only the
// bound on the typed value is checked here.
func ValidateInt(field string, value, min, max int) *ValidationError {
	if value < min || value > max {
		return fail("Invalid %s: must be an integer between %d and %d", field, min, max)
	}
	return nil
}
