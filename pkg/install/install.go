// Package install drives the fixed installation state machine, wiring
// every other component together (C16, §4.13).
package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ttw-community/mpi-installer/pkg/archive"
	"github.com/ttw-community/mpi-installer/pkg/audio"
	"github.com/ttw-community/mpi-installer/pkg/bsaread"
	"github.com/ttw-community/mpi-installer/pkg/bsawrite"
	"github.com/ttw-community/mpi-installer/pkg/config"
	"github.com/ttw-community/mpi-installer/pkg/extract"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/patch"
	"github.com/ttw-community/mpi-installer/pkg/postcmd"
	"github.com/ttw-community/mpi-installer/pkg/process"
	"github.com/ttw-community/mpi-installer/pkg/report"
	"github.com/ttw-community/mpi-installer/pkg/resolver"
	"github.com/ttw-community/mpi-installer/pkg/schedule"
	"github.com/ttw-community/mpi-installer/pkg/scratch"
	"github.com/ttw-community/mpi-installer/pkg/validate"
)

// State names one point in the driver's fixed pipeline (§4.13).
type State int

const (
	StateInit State = iota
	StateExtract
	StateLoad
	StateValidate
	StateDispatch
	StatePack
	StatePost
	StateReport
	StateCleanup
	StateDone
	StateFailed
)

func (s State) String() string {
	names := [...]string{"INIT", "EXTRACT", "LOAD", "VALIDATE", "DISPATCH", "PACK", "POST", "REPORT", "CLEANUP", "DONE", "FAILED"}
	if int(s) < 0 || int(s) >= len(names) {
		return "UNKNOWN"
	}
	return names[s]
}

// InstallationProfile is the manifest profile index used for the actual
// install (§3).
const InstallationProfile = 1

// ReportFileName is the summary log written to the destination (§6).
const ReportFileName = "ttw-installation.log"

// Options configures one run of the driver.
type Options struct {
	Config      *config.Config
	Codec       archive.Codec
	PatchTools  patch.Tools
	AudioTool   audio.Tool
	ProgressCh  chan<- schedule.Progress
	// ContinueOnValidationFailure lets a caller (typically an interactive
	// CLI prompt) opt to proceed past a failed validation report rather
	// than abort (§4.3, §7).
	ContinueOnValidationFailure bool
}

// Result summarizes a completed run.
type Result struct {
	FinalState    State
	Logger        *report.Logger
	AssetFailures int
	PackFailures  int
	PostFailures  int
}

// Run executes the full pipeline: INIT -> EXTRACT -> LOAD -> VALIDATE ->
// DISPATCH -> PACK -> POST -> REPORT -> CLEANUP -> DONE|FAILED. Cleanup
// always runs, on every terminal state (§4.13).
func Run(ctx context.Context, opts Options) (Result, error) {
	logger := report.New()
	reg := scratch.NewRegistry()

	if errs := scratch.SweepStale(os.TempDir()); len(errs) > 0 {
		for _, e := range errs {
			logger.Warning("stale scratch sweep: %v", e)
		}
	}

	var writer *bsawrite.Collector
	defer func() {
		if writer != nil {
			for _, e := range writer.Dispose() {
				logger.Warning("staging cleanup: %v", e)
			}
		}
		for _, e := range reg.CleanupAll() {
			logger.Warning("scratch cleanup: %v", e)
		}
	}()

	if err := opts.Config.Validate(); err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: configuration invalid: %w", err)
	}

	extraction, err := extract.Extract(opts.Codec, reg, opts.Config.PackagePath)
	if err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: extract failed: %w", err)
	}

	manifestPath := filepath.Join(extraction.Root, "_package", "index.json")
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: load manifest failed: %w", err)
	}
	for i := 0; i < m.SkippedAssets; i++ {
		logger.Warning("manifest: an asset entry was skipped during parsing")
	}

	locs, err := m.GetLocations(InstallationProfile)
	if err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: %w", err)
	}
	vars, err := m.GetVariables(InstallationProfile)
	if err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: %w", err)
	}
	r := resolver.New(opts.Config, vars)

	results, err := validate.Run(r, locs, m.Checks)
	if err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: validation error: %w", err)
	}
	if !validate.Pass(results) {
		failureReport := validate.Report(results)
		logger.Error("validation failed:\n%s", failureReport)
		if !opts.ContinueOnValidationFailure {
			return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: validation failed:\n%s", failureReport)
		}
	}

	writer, err = bsawrite.New(r, opts.Config.Destination, locs)
	if err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: %w", err)
	}
	readCache := bsaread.New(opts.Codec)
	defer readCache.CloseAll()

	scratchDir, err := reg.Create(os.TempDir())
	if err != nil {
		return Result{FinalState: StateFailed, Logger: logger}, fmt.Errorf("install: %w", err)
	}

	env := &process.Env{
		Resolver:    r,
		Locations:   locs,
		PackageRoot: extraction.Root,
		ReadCache:   readCache,
		Writer:      writer,
		Tools:       opts.PatchTools,
		AudioTool:   opts.AudioTool,
		ScratchDir:  scratchDir,
	}

	schedule.Run(ctx, m.Assets, func(asset manifest.Asset) error {
		return process.Process(env, asset)
	}, logger, opts.ProgressCh)

	schedule.PushStatus(opts.ProgressCh, 100, schedule.StatusPackingArchives)
	packFailures, err := writer.WriteAllBsas(opts.Codec)
	if err != nil {
		logger.Error("pack: %v", err)
	}

	schedule.PushStatus(opts.ProgressCh, 100, schedule.StatusRunningPostCmds)
	allowedRoots := append([]string{opts.Config.Destination}, opts.Config.AllowedRoots()...)
	postFailures, err := postcmd.Execute(r, allowedRoots, m.PostCommands)
	if err != nil {
		logger.Error("post-commands: %v", err)
	}

	reportPath := filepath.Join(opts.Config.Destination, ReportFileName)
	if f, err := os.Create(reportPath); err == nil {
		_ = logger.WriteReport(f)
		f.Close()
	} else {
		logger.Warning("could not write report file: %v", err)
	}

	final := StateDone
	if logger.HasErrors() {
		final = StateFailed
	}

	return Result{
		FinalState:    final,
		Logger:        logger,
		AssetFailures: logger.Count(report.LevelError),
		PackFailures:  packFailures,
		PostFailures:  postFailures,
	}, nil
}
