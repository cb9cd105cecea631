package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/flimlab/gorld/comm"
	"github.com/flimlab/gorld/imgrec"
	"github.com/flimlab/gorld/rld"
	"github.com/flimlab/gorld/sim"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "rld-http.yml"
	k              = koanf.New(".")
)

type recorder struct {
	// Root is the root folder run artifacts are saved under
	Root string `yaml:"Root"`

	// Prefix is prepended to run folder names
	Prefix string `yaml:"Prefix"`

	// AutoSave writes every completed measurement to disk
	AutoSave bool `yaml:"AutoSave"`
}

type config struct {
	Addr        string   `yaml:"Addr"`
	Root        string   `yaml:"Root"`
	SerialAddr  string   `yaml:"SerialAddr"`
	SimHardware bool     `yaml:"SimHardware"`
	Settings    string   `yaml:"Settings"`
	Recorder    recorder `yaml:"Recorder"`
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:        ":8000",
		Root:        "/",
		SerialAddr:  "/dev/ttyACM0",
		SimHardware: false,
		Settings:    "settings.conf",
		Recorder:    recorder{Root: "data", AutoSave: true},
	}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `rld-http exposes a time-gated lifetime imaging instrument over HTTP.
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	rld-http <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `rld-http is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.

SerialAddr is the serial port of the RLD pulse controller.  SimHardware
replaces the camera and controller with software simulations so the server
can be exercised with nothing attached.

Settings points to the instrument settings file; when present and complete
its parameters are staged at boot, otherwise the defaults are used and the
problem is logged.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("rld-http version %v\n", Version)
}

func run() {
	cfg := config{}
	k.Unmarshal("", &cfg)

	seq, err := buildSequencer(cfg)
	if err != nil {
		log.Fatal(err)
	}

	w := rld.NewHTTPWrapper(seq)
	w.WriteLifetime = imgrec.WriteLifetimeFITS
	switch p, err := rld.LoadSettings(cfg.Settings); err {
	case nil:
		w.SetParams(p)
		log.Println("staged parameters from", cfg.Settings)
	default:
		log.Printf("using default parameters (%v)", err)
	}

	rec := &imgrec.Recorder{Root: cfg.Recorder.Root, Prefix: cfg.Recorder.Prefix, Enabled: cfg.Recorder.AutoSave}
	w.OnComplete = func(r *rld.Record) {
		if !rec.Enabled {
			return
		}
		fldr, err := rec.SaveRecord(r)
		if err != nil {
			log.Println("auto-save failed:", err)
			return
		}
		log.Println("measurement saved to", fldr)
	}

	hndlrS := rld.SubMuxSanitize(cfg.Root)
	rootMux := chi.NewRouter()
	mux := chi.NewRouter()
	rootMux.Mount(hndlrS, mux)
	w.Bind(mux)
	imgrec.NewHTTPWrapper(rec).Bind(mux)
	log.Println("now listening for requests at", cfg.Addr+cfg.Root)
	log.Fatal(http.ListenAndServe(cfg.Addr, rootMux))
}

func buildSequencer(cfg config) (*rld.Sequencer, error) {
	if cfg.SimHardware {
		log.Println("simulated hardware in use, no instrument attached")
		cam := sim.NewCamera(256, 188)
		return rld.NewSequencer(cam, &sim.Controller{Cam: cam}), nil
	}
	ctl := comm.NewController(cfg.SerialAddr)
	if err := ctl.Open(); err != nil {
		return nil, fmt.Errorf("controller at %s: %w", cfg.SerialAddr, err)
	}
	// the physical camera driver is attached by the owning process at
	// runtime; until one is, measure requests fail fast with NotReady
	log.Println("no camera driver attached, measurements will report not ready")
	return rld.NewSequencer(nil, ctl), nil
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
