// Package preflight verifies the external requirements of the pipeline
// before it starts: media binaries, writable directories, disk headroom,
// and posting service connectivity.
package preflight

import (
	"context"

	"scenecast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckBinary("FFmpeg", cfg.FFmpegBinary(), "-version"),
		CheckBinary("FFprobe", cfg.FFprobeBinary(), "-version"),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDiskSpace("Staging disk space", cfg.Paths.StagingDir, minStagingBytes),
	}

	if cfg.Posting.ServiceURL != "" {
		results = append(results, CheckPostingService(ctx, cfg.Posting))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
