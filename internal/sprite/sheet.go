package sprite

import (
	"image"
	"image/color"

	"github.com/ZacxDev/spritemosaic/internal/config"
)

// DefaultBands is the number of tiles in the built-in sheet.
const DefaultBands = 16

// bayer8 is the 8x8 ordered-dither threshold matrix.
var bayer8 = [8][8]uint8{
	{0, 32, 8, 40, 2, 34, 10, 42},
	{48, 16, 56, 24, 50, 18, 58, 26},
	{12, 44, 4, 36, 14, 46, 6, 38},
	{60, 28, 52, 20, 62, 30, 54, 22},
	{3, 35, 11, 43, 1, 33, 9, 41},
	{51, 19, 59, 27, 49, 17, 57, 25},
	{15, 47, 7, 39, 13, 45, 5, 37},
	{63, 31, 55, 23, 61, 29, 53, 21},
}

// DefaultSheet returns a one-row sheet of DefaultBands 8x8 tiles forming an
// ordered-dither ramp. Tile k is white wherever the Bayer threshold is below
// 4k and black elsewhere, so tile 0 is solid black.
func DefaultSheet() image.Image {
	w, h := config.TileWidth, config.TileHeight
	m := image.NewRGBA(image.Rect(0, 0, w*DefaultBands, h))
	ink := color.RGBA{0, 0, 0, 0xff}

	for k := 0; k < DefaultBands; k++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := ink
				if int(bayer8[y%8][x%8]) < 4*k {
					c = opaqueWhite
				}
				m.SetRGBA(k*w+x, y, c)
			}
		}
	}
	return m
}
