package control

// NormToContainer maps normalized pointer coordinates into container pixels.
// Inputs outside [0..1] are clamped; a corner can still be placed outside the
// container with pixel coordinates.
func NormToContainer(xn, yn, w, h float64) (float64, float64) {
	return clamp01(xn) * w, clamp01(yn) * h
}

// clamp01 bounds a float to the [0..1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
