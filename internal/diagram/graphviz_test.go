package diagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderImage(t *testing.T) {
	png, err := RenderImage(context.Background(), Build(reviewGraph(), nil))
	require.NoError(t, err)
	require.Greater(t, len(png), 8)

	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRenderImage_WithOverlay(t *testing.T) {
	png, err := RenderImage(context.Background(), simulatedModel())
	require.NoError(t, err)
	assert.Equal(t, byte(0x89), png[0])
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), simulatedModel())
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}
