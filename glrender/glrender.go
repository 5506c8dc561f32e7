// Package glrender renders fragment evaluators into raster images.
package glrender

import (
	"github.com/soypat/geometry/ms2"
)

// PixelUV returns the surface coordinate at the center of pixel (i,j) of a
// w by h image. Row 0 is the top of the image and maps to v close to 1.
func PixelUV(i, j, w, h int) ms2.Vec {
	return ms2.Vec{
		X: (float32(i) + 0.5) / float32(w),
		Y: 1 - (float32(j)+0.5)/float32(h),
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
