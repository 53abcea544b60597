// Package schedule partitions assets into op-type buckets and executes
// each bucket with bounded worker parallelism, reporting progress to a
// non-blocking channel the UI collaborator drains independently (C12,
// §4.9, §5).
package schedule

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/process"
	"github.com/ttw-community/mpi-installer/pkg/report"
)

// bucketOrder is the fixed driver order between buckets (§4.13): new,
// copy, patch, audio-resample, audio-transcode.
var bucketOrder = []manifest.OpType{
	manifest.OpNew,
	manifest.OpCopy,
	manifest.OpPatch,
	manifest.OpAudioResample,
	manifest.OpAudioTranscode,
}

// parallelism returns a bucket's worker count (§4.9).
func parallelism(op manifest.OpType) int {
	switch op {
	case manifest.OpAudioResample, manifest.OpAudioTranscode:
		return runtime.NumCPU()
	default:
		return 4
	}
}

// progressStride is how many completed assets elapse between progress
// updates for a bucket (§4.9).
func progressStride(op manifest.OpType) int {
	switch op {
	case manifest.OpCopy:
		return 500
	case manifest.OpAudioResample:
		return 1000
	default:
		return 100
	}
}

// Progress is one update pushed to the UI collaborator.
type Progress struct {
	Percent int
	Status  string
}

// Status strings for the two driver phases that run after every asset
// bucket has finished dispatching (§4.9): packing every staged BSA, then
// running post-install commands. The per-bucket statuses come from
// opName; these are pushed directly by the driver.
const (
	StatusPackingArchives = "packing archives"
	StatusRunningPostCmds = "running post-install commands"
)

// Processor runs one asset's operation, returning whether it succeeded.
// Process itself never returns a fatal error to the scheduler — failures
// are logged by the caller and counted, not propagated (§5, §7).
type Processor func(asset manifest.Asset) error

// Run executes every bucket in bucketOrder, in order, with bounded
// parallelism within each bucket. Progress updates are pushed to
// progressCh without blocking; a full channel drops the update rather
// than stall a worker (§5).
func Run(ctx context.Context, assets []manifest.Asset, processFn Processor, logger *report.Logger, progressCh chan<- Progress) {
	byBucket := make(map[manifest.OpType][]manifest.Asset)
	for _, a := range assets {
		byBucket[a.OpType] = append(byBucket[a.OpType], a)
	}

	total := len(assets)
	completed := 0

	for _, op := range bucketOrder {
		bucket := byBucket[op]
		if len(bucket) == 0 {
			continue
		}
		runBucket(ctx, op, bucket, processFn, logger, progressCh, &completed, total)
	}
}

func runBucket(ctx context.Context, op manifest.OpType, bucket []manifest.Asset, processFn Processor, logger *report.Logger, progressCh chan<- Progress, completed *int, total int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism(op))

	stride := progressStride(op)
	var done atomic.Int64

	for _, asset := range bucket {
		asset := asset
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			if err := processFn(asset); err != nil {
				var missing *process.MissingSourceError
				if errors.As(err, &missing) {
					logger.Missing(missing.Path)
				} else {
					logger.Error("asset %s failed: %v", asset.TargetPath, err)
				}
			}

			n := done.Add(1)
			if n%int64(stride) == 0 {
				pushProgress(progressCh, completed, total, op)
			}
			return nil
		})
	}

	_ = g.Wait()
	*completed += len(bucket)
	pushProgress(progressCh, completed, total, op)
}

func pushProgress(progressCh chan<- Progress, completed *int, total int, op manifest.OpType) {
	if progressCh == nil || total == 0 {
		return
	}
	percent := (*completed * 100) / total
	if percent > 100 {
		percent = 100
	}
	PushStatus(progressCh, percent, opName(op))
}

// PushStatus pushes a status update at percent without blocking; a full
// channel drops the update rather than stall the caller (§5). Used by
// the driver itself for the two phases that run after every asset bucket
// has finished (StatusPackingArchives, StatusRunningPostCmds).
func PushStatus(progressCh chan<- Progress, percent int, status string) {
	if progressCh == nil {
		return
	}
	select {
	case progressCh <- Progress{Percent: percent, Status: status}:
	default:
	}
}

func opName(op manifest.OpType) string {
	switch op {
	case manifest.OpCopy:
		return "copying"
	case manifest.OpNew:
		return "embedding"
	case manifest.OpPatch:
		return "patching"
	case manifest.OpAudioResample:
		return "resampling audio"
	case manifest.OpAudioTranscode:
		return "transcoding audio"
	default:
		return "unknown"
	}
}
