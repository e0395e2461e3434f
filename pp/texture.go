package pp

import (
	"fmt"

	"github.com/gogpu/glance/types"
	"github.com/gogpu/glance/wire"
)

// textureFormatFor maps a wire.PixelFormat to the hal texture format a
// shareable output texture should be created with, per spec.md §4.4's
// `setup(device, context, output, shareable)`.
func textureFormatFor(f wire.PixelFormat) (types.TextureFormat, error) {
	switch f {
	case wire.PixelFormatBGRA:
		return types.TextureFormatBGRA8Unorm, nil
	case wire.PixelFormatRGBA, wire.PixelFormatRGB24, wire.PixelFormatBGR32:
		return types.TextureFormatRGBA8Unorm, nil
	case wire.PixelFormatRGBA10:
		return types.TextureFormatRGB10A2Unorm, nil
	case wire.PixelFormatRGBA16F:
		return types.TextureFormatRGBA16Float, nil
	default:
		return types.TextureFormatUndefined, fmt.Errorf("pp: no texture format for pixel format %s", f)
	}
}
