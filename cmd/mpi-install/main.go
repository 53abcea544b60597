// Command mpi-install installs a .mpi package against a configured set of
// reference game roots and a destination directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/ttw-community/mpi-installer/pkg/archive"
	"github.com/ttw-community/mpi-installer/pkg/audio"
	"github.com/ttw-community/mpi-installer/pkg/config"
	"github.com/ttw-community/mpi-installer/pkg/install"
	"github.com/ttw-community/mpi-installer/pkg/patch"
	"github.com/ttw-community/mpi-installer/pkg/schedule"
)

var (
	packagePath    string
	destination    string
	fo3Root        string
	fnvRoot        string
	tes4Root       string
	binaryPatchBin string
	lz4DecodeBin   string
	mediaToolBin   string
	continueOnFail bool
)

func init() {
	flag.StringVar(&packagePath, "package", "", "Path to a .mpi package file or an already-extracted package directory")
	flag.StringVar(&destination, "destination", "", "Output directory to install into")
	flag.StringVar(&fo3Root, "fo3-root", "", "Fallout 3 install directory, if configured")
	flag.StringVar(&fnvRoot, "fnv-root", "", "Fallout New Vegas install directory, if configured")
	flag.StringVar(&tes4Root, "tes4-root", "", "Oblivion install directory, if configured")
	flag.StringVar(&binaryPatchBin, "binary-patch-bin", "xdelta3", "Path to the binary-patch helper")
	flag.StringVar(&lz4DecodeBin, "lz4-decode-bin", "lz4", "Path to the lz4-decode helper")
	flag.StringVar(&mediaToolBin, "media-tool-bin", "ffmpeg", "Path to the media-transcode helper")
	flag.BoolVar(&continueOnFail, "continue-on-validation-failure", false, "Proceed past a failed pre-install validation report")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mpi-install: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if packagePath == "" || destination == "" {
		flag.Usage()
		return fmt.Errorf("-package and -destination are required")
	}

	roots := map[config.Game]string{}
	if fo3Root != "" {
		roots[config.Fallout3] = fo3Root
	}
	if fnvRoot != "" {
		roots[config.FalloutNV] = fnvRoot
	}
	if tes4Root != "" {
		roots[config.Oblivion] = tes4Root
	}

	cfg := &config.Config{
		Roots:       roots,
		Destination: destination,
		PackagePath: packagePath,
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("installing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	progressCh := make(chan schedule.Progress, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			bar.Describe(p.Status)
			_ = bar.Set(p.Percent)
		}
	}()

	result, err := install.Run(context.Background(), install.Options{
		Config:                      cfg,
		Codec:                       archive.NewNativeCodec(),
		PatchTools:                  patch.Tools{BinaryPatch: binaryPatchBin, Lz4Decode: lz4DecodeBin},
		AudioTool:                   audio.Tool(mediaToolBin),
		ProgressCh:                  progressCh,
		ContinueOnValidationFailure: continueOnFail,
	})
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	fmt.Printf("install finished: %s (%d asset failures, %d pack failures, %d post-command failures)\n",
		result.FinalState, result.AssetFailures, result.PackFailures, result.PostFailures)

	if result.FinalState != install.StateDone {
		os.Exit(1)
	}
	return nil
}
