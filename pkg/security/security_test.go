package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRawParamsRejectsOversized(t *testing.T) {
	big := strings.Repeat("a", 2<<20)
	err := ValidateRawParams([]byte(`{"q":"` + big + `"}`))
	if assert.NotNil(t, err) {
		assert.Equal(t, "JSON params exceed size limit", err.Message)
	}
}

func TestValidateRawParamsRejectsDangerousPatterns(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"command substitution", `{"q":"$(rm -rf /)"}`},
		{"backtick", "{\"q\":\"`whoami`\"}"},
		{"null byte", "{\"q\":\"a\x00b\"}"},
		{"file scheme", `{"q":"file:///etc/passwd"}`},
		{"path traversal", `{"q":"../../../etc/passwd"}`},
		{"url-encoded traversal", `{"q":"..%2f..%2fetc%2fpasswd"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRawParams([]byte(tt.raw))
			assert.NotNil(t, err, "expected rejection for %s", tt.name)
		})
	}
}

func TestValidateRawParamsAllowsBenign(t *testing.T) {
	err := ValidateRawParams([]byte(`{"file_types":[".py",".go"],"max_files":100}`))
	assert.Nil(t, err)
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		wantErr bool
	}{
		{"valid", ".py", false},
		{"blocked", ".exe", true},
		{"malformed no dot", "py", true},
		{"too long", ".abcdefghijk", true},
		{"path-like", "../../../etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtension(tt.ext)
			if tt.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestValidatePathStaysUnderRoot(t *testing.T) {
	root := "/home/user/project"

	abs, err := ValidatePath(root, "src/main.go")
	assert.Nil(t, err)
	assert.Equal(t, "/home/user/project/src/main.go", abs)

	_, err = ValidatePath(root, "../../../etc/passwd")
	assert.NotNil(t, err)

	_, err = ValidatePath(root, "/etc/passwd")
	assert.NotNil(t, err)
}

func TestValidatePathAllowsRootUnderBlockedPrefixWhenRootItselfIsThere(t *testing.T) {
	root := "/tmp/project-under-tmp"
	abs, err := ValidatePath(root, "README.md")
	assert.Nil(t, err)
	assert.Equal(t, "/tmp/project-under-tmp/README.md", abs)
}

func TestValidateArrayAndQuery(t *testing.T) {
	items := make([]string, 101)
	err := ValidateArray("file_types", items)
	if assert.NotNil(t, err) {
		assert.Contains(t, err.Message, "file_types")
	}

	err = ValidateQuery("query", strings.Repeat("a", 101))
	assert.NotNil(t, err)
}

func TestValidateIntBounds(t *testing.T) {
	assert.NotNil(t, ValidateInt("limit", 0, 1, 100))
	assert.NotNil(t, ValidateInt("limit", 101, 1, 100))
	assert.Nil(t, ValidateInt("limit", 50, 1, 100))
}
