package amg

// LabelImage folds masks into one label image: pixels of mask i get label
// i+1 and later masks overwrite earlier ones. 0 is background.
func LabelImage(masks []Mask, width, height int) []uint16 {
	out := make([]uint16, width*height)
	for i, m := range masks {
		if m.Width != width || m.Height != height {
			continue
		}
		label := uint16(min(i+1, 1<<16-1))
		for p, v := range m.Segmentation {
			if v != 0 {
				out[p] = label
			}
		}
	}
	return out
}
