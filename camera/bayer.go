package camera

// bilinear demosaic for the RGGB pattern the instrument cameras use.
// Border pixels reuse their nearest in-bounds neighbor.

func clampIdx(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// DemosaicRGGB converts a single-channel Bayer frame to interleaved RGB.
// The lifetime reduction assumes intensity-comparable channels, so color
// frames must pass through here before any averaging.
func DemosaicRGGB(f Frame) (Frame, error) {
	if f.Channels != 1 {
		return Frame{}, ErrNotBayer
	}
	w, h := f.Width, f.Height
	out := Frame{
		Pix:       make([]uint16, w*h*3),
		Width:     w,
		Height:    h,
		Channels:  3,
		Timestamp: f.Timestamp,
	}
	at := func(x, y int) uint32 {
		x = clampIdx(x, w-1)
		y = clampIdx(y, h-1)
		return uint32(f.Pix[y*w+x])
	}
	cross := func(x, y int) uint16 {
		return uint16((at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1)) / 4)
	}
	diag := func(x, y int) uint16 {
		return uint16((at(x-1, y-1) + at(x+1, y-1) + at(x-1, y+1) + at(x+1, y+1)) / 4)
	}
	horiz := func(x, y int) uint16 {
		return uint16((at(x-1, y) + at(x+1, y)) / 2)
	}
	vert := func(x, y int) uint16 {
		return uint16((at(x, y-1) + at(x, y+1)) / 2)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			own := uint16(at(x, y))
			evenX := x%2 == 0
			evenY := y%2 == 0
			switch {
			case evenX && evenY: // red site
				out.Pix[i+0] = own
				out.Pix[i+1] = cross(x, y)
				out.Pix[i+2] = diag(x, y)
			case !evenX && !evenY: // blue site
				out.Pix[i+0] = diag(x, y)
				out.Pix[i+1] = cross(x, y)
				out.Pix[i+2] = own
			case !evenX && evenY: // green site on a red row
				out.Pix[i+0] = horiz(x, y)
				out.Pix[i+1] = own
				out.Pix[i+2] = vert(x, y)
			default: // green site on a blue row
				out.Pix[i+0] = vert(x, y)
				out.Pix[i+1] = own
				out.Pix[i+2] = horiz(x, y)
			}
		}
	}
	return out, nil
}
