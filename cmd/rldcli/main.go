// Command rldcli runs one lifetime measurement from the terminal and saves
// the artifacts to a timestamped folder.  With -sim it needs no hardware,
// which makes it the quickest way to exercise the full acquisition path.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/theckman/yacspin"

	"github.com/flimlab/gorld/comm"
	"github.com/flimlab/gorld/imgrec"
	"github.com/flimlab/gorld/rld"
	"github.com/flimlab/gorld/sim"
)

func main() {
	var (
		settingsPath = flag.String("settings", "settings.conf", "instrument settings file")
		serialAddr   = flag.String("port", "/dev/ttyACM0", "serial port of the RLD controller")
		outRoot      = flag.String("out", ".", "folder run artifacts are saved under")
		useSim       = flag.Bool("sim", false, "use simulated hardware instead of the instrument")
		noSave       = flag.Bool("nosave", false, "do not write run artifacts")
	)
	flag.Parse()

	params, err := rld.LoadSettings(*settingsPath)
	if err != nil {
		log.Printf("using default parameters (%v)", err)
	}

	var seq *rld.Sequencer
	if *useSim {
		cam := sim.NewCamera(256, 188)
		seq = rld.NewSequencer(cam, &sim.Controller{Cam: cam})
	} else {
		ctl := comm.NewController(*serialAddr)
		if err := ctl.Open(); err != nil {
			log.Fatalf("controller at %s: %v", *serialAddr, err)
		}
		defer ctl.Close()
		log.Fatal("no camera driver linked into this build; use -sim")
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " acquiring",
		SuffixAutoColon: true,
		StopCharacter:   "done",
		StopColors:      []string{"fgGreen"},
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := seq.Arm(); err != nil {
		log.Fatal(err)
	}
	spinner.Start()
	spinner.Message(fmt.Sprintf("%d sets", params.SetsToAcquire))
	rec, err := seq.Capture(params)
	spinner.Stop()

	var perr *rld.PartialError
	switch {
	case err == nil:
	case errors.As(err, &perr):
		log.Printf("partial acquisition: %d of %d sets captured", perr.Completed, perr.Requested)
	default:
		log.Fatal(err)
	}

	if cerr := rec.ComputeLifetime(); cerr != nil {
		log.Println("lifetime computation failed:", cerr)
	}
	took := time.Duration(rec.EndNS - rec.StartNS)
	log.Printf("captured %v frames in %v", rec.Stack.Lengths(), took)

	if *noSave {
		return
	}
	r := imgrec.Recorder{Root: *outRoot}
	fldr, err := r.SaveRecord(rec)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("saved to", fldr)
	os.Exit(exitCode(rec))
}

func exitCode(rec *rld.Record) int {
	if rec.Partial {
		return 2
	}
	return 0
}
