package blend

// div255 divides x by 255 exactly for every uint16 input, using shifts
// instead of division.
func div255(x uint16) uint16 {
	t := x + 128
	return (t + (t >> 8)) >> 8
}

// mulDiv255 returns a*b/255 rounded.
func mulDiv255(a, b byte) byte {
	return byte(div255(uint16(a) * uint16(b)))
}

// addClamp adds two bytes, saturating at 255.
func addClamp(a, b byte) byte {
	if s := uint16(a) + uint16(b); s < 255 {
		return byte(s)
	}
	return 255
}

func unit(v byte) float32 { return float32(v) / 255 }

func toByte(v float32) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return byte(v*255 + 0.5)
}
