package config

import "image/color"

// Viewer palette.
var (
	White      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Background = color.RGBA{R: 24, G: 26, B: 32, A: 255}
	Grid       = color.RGBA{R: 40, G: 44, B: 54, A: 255}
	Orange     = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	Green      = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	LightRed   = color.RGBA{R: 255, G: 60, B: 60, A: 255}
	LightBlue  = color.RGBA{R: 100, G: 180, B: 255, A: 255}
	DarkBlue   = color.RGBA{R: 60, G: 100, B: 160, A: 255}
	Ghost      = color.RGBA{R: 255, G: 255, B: 255, A: 70}
)
