package inbound

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName_ReplacesUnsafeChars(t *testing.T) {
	assert.Equal(t, "a_b_c.jpg", sanitizeFileName("a b/c.jpg"))
}

func TestSanitizeFileName_CapsLength(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := sanitizeFileName(long)
	assert.Len(t, got, maxFileNameLen)
}

func TestExtensionFor_FromMimetype(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("image/jpeg", "image"))
}

func TestExtensionFor_FallsBackToMediaTypeDefault(t *testing.T) {
	assert.Equal(t, ".ogg", extensionFor("", "audio"))
	assert.Equal(t, ".bin", extensionFor("application/x-unknown-thing", "document"))
}
