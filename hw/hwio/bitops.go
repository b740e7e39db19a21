package hwio

func GetBit8(v uint8, n uint) bool {
	return GetBiti8(v, n) != 0
}

func GetBiti8(v uint8, n uint) uint8 {
	return v >> (n) & 0x01
}

// 32/16-bit word splitting

func Hi16(v uint32) uint16 { return uint16(v >> 16) }
func Lo16(v uint32) uint16 { return uint16(v) }

// Cat16 concatenates two 16-bit halves, lo occupying bits 0-15.
func Cat16(lo, hi uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

// LaneMask returns the 16-bit mask of the byte lanes selected by the upper
// and lower strobes.
func LaneMask(upper, lower bool) uint16 {
	var m uint16
	if upper {
		m |= 0xFF00
	}
	if lower {
		m |= 0x00FF
	}
	return m
}
