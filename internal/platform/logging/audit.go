package logging

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// DefaultAuditInterval is how often the size auditor re-checks the log
// directory when no interval is configured.
const DefaultAuditInterval = 24 * time.Hour

// Auditor periodically sums the size of the log directory and warns when it
// grows past the configured limit. It only observes; rotation stays the file
// sink's job.
type Auditor struct {
	logger   *slog.Logger
	dir      string
	limitMB  int
	interval time.Duration
}

// NewAuditor creates an auditor for dir with a limit in megabytes.
func NewAuditor(logger *slog.Logger, dir string, limitMB int, interval time.Duration) *Auditor {
	if interval <= 0 {
		interval = DefaultAuditInterval
	}
	return &Auditor{logger: logger, dir: dir, limitMB: limitMB, interval: interval}
}

// Run checks immediately and then on every interval tick until ctx is done.
func (a *Auditor) Run(ctx context.Context) error {
	a.Check(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Check(ctx)
		}
	}
}

// Check performs one audit pass.
func (a *Auditor) Check(ctx context.Context) {
	total, err := a.directorySize()
	if err != nil {
		a.logger.ErrorContext(ctx, "log size audit failed",
			slog.String("directory", a.dir),
			slog.Any("error", err),
		)
		return
	}

	totalMB := total / (1 << 20)
	if a.limitMB > 0 && totalMB > int64(a.limitMB) {
		a.logger.WarnContext(ctx, "log directory exceeds size limit",
			slog.String("directory", a.dir),
			slog.Int64("size_mb", totalMB),
			slog.Int("limit_mb", a.limitMB),
		)
		return
	}

	a.logger.DebugContext(ctx, "log size audit passed",
		slog.String("directory", a.dir),
		slog.Int64("size_mb", totalMB),
	)
}

func (a *Auditor) directorySize() (int64, error) {
	var total int64
	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isLogFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

func isLogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".log", ".txt", ".gz":
		return true
	}
	return false
}
