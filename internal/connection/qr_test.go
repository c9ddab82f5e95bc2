package connection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQRDataURL(t *testing.T) {
	out, err := RenderQRDataURL("1@abc,def,ghi=")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "data:image/png;base64,"), "must be a PNG data URL, never the raw QR string")
	assert.NotContains(t, out, "1@abc,def,ghi=", "the raw QR payload must never appear in the rendered output")
}
