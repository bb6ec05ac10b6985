package vcs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codefionn/promptloop/internal/logger"
)

// ArchiveDir is where finished run artifacts are moved, relative to the
// project root.
const ArchiveDir = ".promptloop/archive"

// ArchiveRun moves the given run artifacts (PRD files, progress log) into a
// timestamped directory under the project's archive. Missing files are
// skipped; the run may not have produced all of them.
func ArchiveRun(projectRoot string, artifacts ...string) (string, error) {
	stamp := time.Now().Format("2006-01-02-150405")
	dest := filepath.Join(projectRoot, ArchiveDir, stamp)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	moved := 0
	for _, artifact := range artifacts {
		src := artifact
		if !filepath.IsAbs(src) {
			src = filepath.Join(projectRoot, artifact)
		}
		if _, err := os.Stat(src); err != nil {
			logger.Debug("Skipping missing artifact %s", src)
			continue
		}
		if err := os.Rename(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return "", fmt.Errorf("failed to archive %s: %w", src, err)
		}
		moved++
	}

	if moved == 0 {
		// Nothing to archive; remove the empty directory again.
		_ = os.Remove(dest)
		return "", fmt.Errorf("no artifacts found to archive")
	}

	logger.Info("Archived %d artifact(s) to %s", moved, dest)
	return dest, nil
}
