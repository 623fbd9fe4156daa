package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pbnjay/memory"
	"go.uber.org/zap"

	"github.com/abworrall/bracket-hdr/pkg/bracket"
	"github.com/abworrall/bracket-hdr/pkg/bracketio"
)

var (
	fVerbosity      int
	fConfigFile     string
	fLogFile        string
	fOutputDir      string
	fFormat         string
	fBatch          bool
	fParallel       int
	fTonemapper     string
	fMissingTime    string
	fAlign          bool
	fAlignFail      string
	fSamples        int
	fLambda         float64
	fMaskChannels   string
	fApplyMask      bool
	fWriteMask      bool
	fWritePreviews  bool
	fMemoryFraction float64
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fConfigFile, "config", "", "YAML config file; otherwise the first .yaml found among the inputs")
	flag.StringVar(&fLogFile, "logfile", "", "also log to this file, rotated as it grows")
	flag.StringVar(&fOutputDir, "o", "out", "directory for output files")
	flag.StringVar(&fFormat, "format", "png", "format of tone mapped output: png, jpg, tif")
	flag.BoolVar(&fBatch, "batch", false, "each argument is a separate scene")
	flag.IntVar(&fParallel, "parallel", 0, "max scenes processed at once (0 means fit to cores and memory)")
	flag.StringVar(&fTonemapper, "tonemapper", "drago,reinhard,mantiuk", "comma separated tone mappers, or all: "+bracket.ListTonemappers())
	flag.StringVar(&fMissingTime, "missingtime", "fail", "exposures without a time: fail, ladder, estimate")
	flag.BoolVar(&fAlign, "align", true, "align the exposures before fusing them")
	flag.StringVar(&fAlignFail, "alignfail", "zero", "what to do with an exposure that won't align: zero, drop")
	flag.IntVar(&fSamples, "samples", 70, "pixel locations used to calibrate the camera response")
	flag.Float64Var(&fLambda, "lambda", 10, "smoothness of the calibrated response")
	flag.StringVar(&fMaskChannels, "maskchannels", "all", "how channels combine in the saturation mask: all, any, each")
	flag.BoolVar(&fApplyMask, "applymask", false, "black out masked pixels before tone mapping")
	flag.BoolVar(&fWriteMask, "writemask", true, "write the saturation mask")
	flag.BoolVar(&fWritePreviews, "previews", false, "write aligned previews of each exposure (implied by -v)")
	flag.Float64Var(&fMemoryFraction, "memfraction", 0.5, "fraction of physical memory that concurrent scenes may use")
	flag.Parse()
}

func main() {
	zl := newLogger(fVerbosity, fLogFile)
	defer zl.Sync()
	log := zap.NewStdLog(zl)
	log.Printf("bracket-hdr starting\n")

	warn := color.New(color.FgYellow).SprintfFunc()
	fail := color.New(color.FgRed, color.Bold).SprintfFunc()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: bracket-hdr [flags] image-or-dir ...\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	sets := []*bracketio.Set{}
	if fBatch {
		for _, arg := range flag.Args() {
			sets = append(sets, bracketio.NewSet(filepath.Base(filepath.Clean(arg))))
			if err := sets[len(sets)-1].LoadFilesAndDirs(arg); err != nil {
				log.Fatal(err)
			}
		}
	} else {
		sets = append(sets, bracketio.NewSet(""))
		if err := sets[0].LoadFilesAndDirs(flag.Args()...); err != nil {
			log.Fatal(err)
		}
	}

	cfg, err := configure(sets)
	if err != nil {
		log.Fatal(err)
	}
	cfg.Logger = log
	if cfg.Verbosity > 1 && cfg.DebugDir == "" {
		cfg.DebugDir = filepath.Join(fOutputDir, "debug")
	}
	if cfg.DebugDir != "" {
		if err := os.MkdirAll(cfg.DebugDir, 0o755); err != nil {
			log.Fatal(err)
		}
	}
	if cfg.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	scenes := []bracket.Scene{}
	for _, s := range sets {
		for _, w := range s.Warnings {
			fmt.Fprintln(os.Stderr, warn("warning: %v", w))
		}
		if cfg.Verbosity > 0 {
			log.Printf("Loaded %s", s)
		}
		scenes = append(scenes, bracket.Scene{Name: s.Name, Exposures: s.Exposures})
	}

	parallel := fParallel
	if parallel < 1 {
		budget := uint64(float64(memory.TotalMemory()) * fMemoryFraction)
		parallel = bracket.MaxParallel(scenes, len(cfg.Tonemappers), budget, cfg.Workers)
		log.Printf("Processing %d scene(s), %d at a time (%d MB physical memory)\n",
			len(scenes), parallel, memory.TotalMemory()/1024/1024)
	}

	opts := bracketio.WriteOptions{
		Format:   fFormat,
		Mask:     fWriteMask,
		Previews: fWritePreviews || cfg.Verbosity > 0,
		Response: cfg.Verbosity > 0,
	}

	nFailed := 0
	for _, sr := range bracket.RunScenes(cfg, scenes, parallel) {
		if sr.Err != nil {
			nFailed++
			fmt.Fprintln(os.Stderr, fail("scene '%s' failed: %v", sr.Name, sr.Err))
			continue
		}
		for _, w := range sr.Result.Warnings {
			fmt.Fprintln(os.Stderr, warn("scene '%s': %v", sr.Name, w))
		}

		written, err := bracketio.WriteResult(sr.Result, filepath.Join(fOutputDir, sr.Name), opts)
		if err != nil {
			nFailed++
			fmt.Fprintln(os.Stderr, fail("scene '%s' output: %v", sr.Name, err))
			continue
		}
		log.Printf("Scene '%s' [%s] written: %s\n", sr.Name, sr.Result.RunID, strings.Join(written, ", "))
	}

	if nFailed > 0 {
		zl.Sync()
		os.Exit(1)
	}
}

// configure starts from the config file, if any, and applies the flags
// that were set on the command line on top.
func configure(sets []*bracketio.Set) (bracket.Config, error) {
	cfg := bracket.NewConfig()
	if fConfigFile != "" {
		loaded, err := bracket.LoadConfig(fConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		for _, s := range sets {
			if s.Config != nil {
				cfg = *s.Config
				break
			}
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Verbosity = fVerbosity
		case "tonemapper":
			cfg.Tonemappers = strings.Split(fTonemapper, ",")
		case "missingtime":
			cfg.MissingTimePolicy = fMissingTime
		case "align":
			cfg.Align.Enabled = fAlign
		case "alignfail":
			cfg.Align.FailurePolicy = fAlignFail
		case "samples":
			cfg.Calibration.Samples = fSamples
		case "lambda":
			cfg.Calibration.Lambda = fLambda
		case "maskchannels":
			cfg.Mask.Channels = fMaskChannels
		case "applymask":
			cfg.Mask.Apply = fApplyMask
		}
	})

	return cfg, cfg.FinalizeConfiguration()
}
