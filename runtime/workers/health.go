package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthWorker periodically logs process-level health: CPU, resident
// memory and goroutine count. Purely observational, it never influences
// the serving path.
type HealthWorker struct {
	log      *slog.Logger
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Error("failed to read cpu usage", slog.String("error", err.Error()))
				continue
			}
			memInfo, err := p.MemoryInfo()
			if err != nil {
				w.log.Error("failed to read memory usage", slog.String("error", err.Error()))
				continue
			}
			w.log.Info("health",
				slog.Float64("cpu_percent", cpu),
				slog.Uint64("rss_bytes", memInfo.RSS),
				slog.Int("goroutines", runtime.NumGoroutine()),
			)
		}
	}
}
