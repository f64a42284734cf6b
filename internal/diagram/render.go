package diagram

import (
	"context"

	"github.com/rendis/flowsim/pkg/schema"
)

// Format names an output format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
	FormatPNG     Format = "image"
	FormatSVG     Format = "svg"
)

// ParseFormat maps a format name to a Format. "" and "png" are accepted as
// aliases for mermaid and image.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", string(FormatMermaid):
		return FormatMermaid, nil
	case string(FormatASCII):
		return FormatASCII, nil
	case string(FormatPNG), "png":
		return FormatPNG, nil
	case string(FormatSVG):
		return FormatSVG, nil
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram format %q", name)
}

// ContentType returns the MIME type of rendered output.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render draws model in format. binDir is only used for ASCII output and may
// point at a directory holding the mermaid-ascii binary.
func Render(ctx context.Context, model *DiagramModel, format Format, binDir string) ([]byte, error) {
	switch format {
	case FormatASCII:
		return []byte(RenderASCIIAuto(ctx, model, binDir)), nil
	case FormatPNG:
		return RenderImage(ctx, model)
	case FormatSVG:
		return RenderSVG(ctx, model)
	default:
		return []byte(RenderMermaid(model)), nil
	}
}
