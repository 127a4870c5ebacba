package manager

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// probeDimensions returns "WxH" for the image at path, or UnknownDimensions
// when the file cannot be opened or decoded.
func probeDimensions(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return UnknownDimensions
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return UnknownDimensions
	}
	return fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
}
