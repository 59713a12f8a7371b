package amg

// rle is a row-major run-length encoding of a binary mask. Runs alternate
// between background and foreground, starting with background.
type rle struct {
	w, h   int
	counts []int
}

func encodeRLE(bin []uint8, w, h int) rle {
	counts := make([]int, 0, 16)
	var cur uint8
	run := 0
	for _, v := range bin {
		if v != cur {
			counts = append(counts, run)
			cur, run = v, 0
		}
		run++
	}
	counts = append(counts, run)
	return rle{w: w, h: h, counts: counts}
}

// pasteInto writes the mask into dst (dstW wide) at offset (ox, oy).
func (r rle) pasteInto(dst []uint8, dstW, ox, oy int) {
	pos := 0
	for i, n := range r.counts {
		if i%2 == 1 {
			for k := pos; k < pos+n; k++ {
				x, y := k%r.w, k/r.w
				dst[(y+oy)*dstW+x+ox] = 1
			}
		}
		pos += n
	}
}
