package imgrec

import (
	"errors"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/flimlab/gorld/camera"
	"github.com/flimlab/gorld/rld"
)

func gradient(w, h, ch int, base uint16) camera.Frame {
	f := camera.Frame{Pix: make([]uint16, w*h*ch), Width: w, Height: h, Channels: ch}
	for i := range f.Pix {
		f.Pix[i] = base + uint16(i*7)
	}
	return f
}

func testRecord(ch int) *rld.Record {
	rec := &rld.Record{Params: rld.DefaultParameters()}
	rec.Params.SetsToAcquire = 2
	for _, w := range rld.WindowOrder {
		seq := rec.Stack.Seq(w)
		for i := 0; i < 2; i++ {
			f := gradient(6, 4, ch, uint16(100*i))
			f.Timestamp = int64(1000 + i)
			seq.Frames = append(seq.Frames, f)
			seq.Timestamps = append(seq.Timestamps, f.Timestamp)
		}
	}
	return rec
}

func framesEqual(a, b camera.Frame) bool {
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

func TestWriteLoadRoundTripMono(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord(1)
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	st, mismatched, err := LoadFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if mismatched {
		t.Error("complete folder reported as mismatched")
	}
	if l := st.Lengths(); l != [3]int{2, 2, 2} {
		t.Fatalf("bad lengths after load: %v", l)
	}
	for _, w := range rld.WindowOrder {
		for i := range rec.Stack.Seq(w).Frames {
			if !framesEqual(rec.Stack.Seq(w).Frames[i], st.Seq(w).Frames[i]) {
				t.Errorf("%s frame %d altered by round trip", w, i)
			}
		}
	}
}

func TestWriteLoadRoundTripColor(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord(3)
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	st, _, err := LoadFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	f := st.Window1.Frames[0]
	if f.Channels != 3 {
		t.Fatalf("expected interleaved color frame, got %d channels", f.Channels)
	}
	if !framesEqual(rec.Stack.Window1.Frames[0], f) {
		t.Error("color frame altered by round trip")
	}
}

func TestWriteRecordEmptyStack(t *testing.T) {
	err := WriteRecord(t.TempDir(), &rld.Record{Params: rld.DefaultParameters()})
	if !errors.Is(err, ErrNothingToSave) {
		t.Errorf("expected ErrNothingToSave, got %v", err)
	}
}

func TestLoadFolderMismatchedCounts(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord(1)
	rec.Stack.Window2.Frames = rec.Stack.Window2.Frames[:1]
	rec.Stack.Window2.Timestamps = rec.Stack.Window2.Timestamps[:1]
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	st, mismatched, err := LoadFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !mismatched {
		t.Error("unequal frame counts not flagged")
	}
	if l := st.Lengths(); l != [3]int{2, 1, 2} {
		t.Errorf("bad lengths: %v", l)
	}
}

func TestLoadFolderMissingRole(t *testing.T) {
	dir := t.TempDir()
	if err := writeTIFF(path.Join(dir, "window1_000.tif"), gradient(4, 4, 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := writeTIFF(path.Join(dir, "window2_000.tif"), gradient(4, 4, 1, 0)); err != nil {
		t.Fatal(err)
	}
	_, _, err := LoadFolder(dir)
	if !errors.Is(err, ErrMissingRole) {
		t.Errorf("expected ErrMissingRole, got %v", err)
	}
}

func TestLoadFolderLegacyBackgroundPrefix(t *testing.T) {
	dir := t.TempDir()
	for _, fn := range []string{"window1_000.tif", "window2_000.tif", "background_000.tif"} {
		if err := writeTIFF(path.Join(dir, fn), gradient(4, 4, 1, 50)); err != nil {
			t.Fatal(err)
		}
	}
	st, _, err := LoadFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if st.Dark.Len() != 1 {
		t.Errorf("legacy background file not loaded as dark, lengths %v", st.Lengths())
	}
}

func TestLoadFolderIgnoresStrays(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord(1)
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	// the settings and timestamp artifacts a saved run carries must not
	// trip up the loader, nor must unrelated files
	if err := os.WriteFile(path.Join(dir, "notes.txt"), []byte("run 12\n"), 0666); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFolder(dir); err != nil {
		t.Fatal(err)
	}
}

func TestWriteRecordSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord(1)
	rec.Params.DelayWindow2US = 30.25
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	p, err := rld.LoadSettings(path.Join(dir, "settings.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if p != rec.Params {
		t.Errorf("settings altered by round trip: %+v != %+v", p, rec.Params)
	}
}

func TestWriteRecordTimestamps(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord(1)
	rec.StartNS = 1700000000123456789
	rec.EndNS = 1700000001123456789
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path.Join(dir, "timestamps.txt"))
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, "Start timestamp: 1700000000123456789") {
		t.Error("nanosecond start stamp missing")
	}
	if !strings.Contains(s, "window2, 1, 1001") {
		t.Error("per-frame timestamp line missing")
	}
}

func TestWriteRecordLifetimeFITS(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord(1)
	if err := rec.ComputeLifetime(); err != nil {
		t.Fatal(err)
	}
	if rec.Lifetime == nil {
		t.Fatal("lifetime map not attached")
	}
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path.Join(dir, "lifetime.fits"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("lifetime.fits is empty")
	}
}

func TestSaveRecordCreatesTimestampedFolder(t *testing.T) {
	root := t.TempDir()
	r := &Recorder{Root: root, Prefix: "run_"}
	fldr, err := r.SaveRecord(testRecord(1))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path.Base(fldr), "run_") {
		t.Errorf("folder name %q missing prefix", path.Base(fldr))
	}
	if _, _, err := LoadFolder(fldr); err != nil {
		t.Fatal(err)
	}
}
