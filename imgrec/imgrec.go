// Package imgrec persists measurement records to disk and loads archived
// measurement folders back.  Raw frames are stored as lossless TIFF, the
// derived lifetime map as a 32-bit float FITS file, alongside the settings
// file and a plain-text timestamp log.
package imgrec

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/image/tiff"

	"github.com/flimlab/gorld/camera"
	"github.com/flimlab/gorld/rld"
)

// ErrMissingRole is generated when a measurement folder lacks images for
// one or more of the three window roles.
var ErrMissingRole = errors.New("folder is missing images for one or more window roles")

// ErrNothingToSave is generated when a record with an empty stack is saved.
var ErrNothingToSave = errors.New("record holds no images")

// Recorder writes measurement records into timestamped subfolders of Root.
// It is not thread safe.
type Recorder struct {
	// Root is the folder run subfolders are created under
	Root string

	// Prefix is prepended to the run subfolder name
	Prefix string

	// Enabled is a flag consumers use to turn automatic saving on or off;
	// the recorder itself does not consult it
	Enabled bool
}

// SaveRecord writes one record into a new timestamped subfolder and
// returns the folder path.
func (r *Recorder) SaveRecord(rec *rld.Record) (string, error) {
	fldr := path.Join(r.Root, r.Prefix+time.Now().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(fldr, 0777); err != nil {
		return "", err
	}
	return fldr, WriteRecord(fldr, rec)
}

// WriteRecord writes a record's artifacts into an existing folder: the
// per-window raw frames with zero-padded indices, the lifetime map if
// computed, the settings file, and the timestamp log.
func WriteRecord(dir string, rec *rld.Record) error {
	if rec.Stack.Empty() {
		return ErrNothingToSave
	}
	for _, w := range rld.WindowOrder {
		seq := rec.Stack.Seq(w)
		for i, f := range seq.Frames {
			fn := path.Join(dir, fmt.Sprintf("%s_%03d.tif", w, i))
			if err := writeTIFF(fn, f); err != nil {
				return err
			}
		}
	}
	if rec.Lifetime != nil {
		f, err := os.Create(path.Join(dir, "lifetime.fits"))
		if err != nil {
			return err
		}
		err = WriteLifetimeFITS(f, rec)
		f.Close()
		if err != nil {
			return err
		}
	}
	if err := rld.SaveSettings(path.Join(dir, "settings.conf"), rec.Params); err != nil {
		return err
	}
	if rec.StartNS != 0 && rec.EndNS != 0 {
		if err := writeTimestamps(path.Join(dir, "timestamps.txt"), rec); err != nil {
			return err
		}
	}
	return nil
}

// LoadFolder reads an archived measurement folder back into a stack.
// Filenames carry the window role as a prefix; dark frames written by old
// software use the background_ prefix.  All three roles must be present.
// Unequal frame counts across roles are flagged through the mismatched
// return rather than failing, so partial archives stay inspectable.
func LoadFolder(dir string) (rld.Stack, bool, error) {
	var st rld.Stack
	entries, err := os.ReadDir(dir)
	if err != nil {
		return st, false, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if !strings.HasSuffix(name, ".tif") {
			continue
		}
		var w rld.Window
		switch {
		case strings.Contains(name, "window1_"):
			w = rld.Window1
		case strings.Contains(name, "window2_"):
			w = rld.Window2
		case strings.HasPrefix(name, "dark_") || strings.Contains(name, "background_"):
			w = rld.Dark
		default:
			continue
		}
		f, err := readTIFF(path.Join(dir, name))
		if err != nil {
			return st, false, fmt.Errorf("%s: %w", name, err)
		}
		seq := st.Seq(w)
		seq.Frames = append(seq.Frames, f)
		seq.Timestamps = append(seq.Timestamps, 0)
	}
	l := st.Lengths()
	if l[0] == 0 || l[1] == 0 || l[2] == 0 {
		return st, false, ErrMissingRole
	}
	return st, st.Mismatched(), nil
}

func writeTIFF(fn string, f camera.Frame) error {
	var img image.Image
	switch f.Channels {
	case 1:
		g := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				g.SetGray16(x, y, color.Gray16{Y: f.Pix[y*f.Width+x]})
			}
		}
		img = g
	case 3:
		c := image.NewRGBA64(image.Rect(0, 0, f.Width, f.Height))
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				i := (y*f.Width + x) * 3
				c.SetRGBA64(x, y, color.RGBA64{
					R: f.Pix[i+0],
					G: f.Pix[i+1],
					B: f.Pix[i+2],
					A: 0xffff,
				})
			}
		}
		img = c
	default:
		return fmt.Errorf("cannot encode %d-channel frame", f.Channels)
	}
	fid, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fid.Close()
	return tiff.Encode(fid, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

func readTIFF(fn string) (camera.Frame, error) {
	fid, err := os.Open(fn)
	if err != nil {
		return camera.Frame{}, err
	}
	defer fid.Close()
	img, err := tiff.Decode(fid)
	if err != nil {
		return camera.Frame{}, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch im := img.(type) {
	case *image.Gray16:
		f := camera.Frame{Pix: make([]uint16, w*h), Width: w, Height: h, Channels: 1}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				f.Pix[y*w+x] = im.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
		return f, nil
	default:
		f := camera.Frame{Pix: make([]uint16, w*h*3), Width: w, Height: h, Channels: 3}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := (y*w + x) * 3
				f.Pix[i+0] = uint16(r)
				f.Pix[i+1] = uint16(g)
				f.Pix[i+2] = uint16(bl)
			}
		}
		return f, nil
	}
}

func writeTimestamps(fn string, rec *rld.Record) error {
	fid, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fid.Close()
	fmt.Fprintf(fid, "Start timestamp: %d\n", rec.StartNS)
	fmt.Fprintf(fid, "End timestamp: %d\n", rec.EndNS)
	fmt.Fprintf(fid, "Start time: %s\n", localStamp(rec.StartNS))
	fmt.Fprintf(fid, "End time: %s\n", localStamp(rec.EndNS))
	fmt.Fprintln(fid, "Image acquisition timestamps (window, index, timestamp):")
	for _, w := range rld.WindowOrder {
		for i, ts := range rec.Stack.Seq(w).Timestamps {
			fmt.Fprintf(fid, "%s, %d, %d\n", w, i, ts)
		}
	}
	return nil
}

// localStamp renders a wall-clock nanosecond stamp with the millisecond
// part appended, since second-resolution local time loses it
func localStamp(ns int64) string {
	t := time.Unix(0, ns)
	return fmt.Sprintf("%s:%07.3f", t.Format("2006-01-02 15:04:05"), float64(ns%1e9)/1e6)
}
