package imgrec

import (
	"errors"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/flimlab/gorld/rld"
)

// ErrNoLifetime is generated when a FITS export is requested for a record
// whose lifetime map has not been computed.
var ErrNoLifetime = errors.New("record has no computed lifetime map")

// WriteLifetimeFITS streams the record's lifetime map to w as a 32-bit
// float FITS image.  NaN survives the float32 narrowing, so "no data"
// pixels stay distinguishable from real values.
func WriteLifetimeFITS(w io.Writer, rec *rld.Record) error {
	m := rec.Lifetime
	if m == nil {
		return ErrNoLifetime
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	dims := []int{m.Width, m.Height}
	if m.Channels > 1 {
		dims = append(dims, m.Channels)
	}
	im := fitsio.NewImage(-32, dims)
	defer im.Close()
	cards := []fitsio.Card{
		{Name: "DELTAT", Value: rec.Params.DeltaT(), Comment: "gate separation [us]"},
		{Name: "EXPTIME", Value: rec.Params.ExposureTimeUS, Comment: "exposure time [us]"},
		{Name: "NSETS", Value: rec.Stack.Dark.Len(), Comment: "averaged acquisition sets"},
		{Name: "BUNIT", Value: "us", Comment: "decay time unit"},
	}
	if err := im.Header().Append(cards...); err != nil {
		return err
	}
	buf := make([]float32, len(m.Data))
	for i, v := range m.Data {
		buf[i] = float32(v)
	}
	if err := im.Write(buf); err != nil {
		return err
	}
	return fits.Write(im)
}
