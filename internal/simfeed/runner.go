package simfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/erichter2018/rvutrack/pkg/logger"
)

// Run executes the complete feed simulation.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simfeed")

	log.Info(ctx, "starting feed simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("studies", cfg.Studies),
		logger.Duration("interval", cfg.Interval),
	)

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.checkHealth(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	if cfg.StartShift {
		if err := c.startShift(ctx, "simulated"); err != nil {
			return stats, fmt.Errorf("shift start failed: %w", err)
		}
	}

	plan := generatePlan(cfg, time.Now().Add(-planSpan(cfg)))
	seen := make(map[string]struct{})

	for _, obs := range plan {
		select {
		case <-ctx.Done():
			return finish(stats), ctx.Err()
		default:
		}

		ack, err := c.sendTick(ctx, obs)
		stats.TicksSent++
		if err != nil {
			stats.Failed++
			log.Warn(ctx, "tick rejected", logger.Error(err))
			continue
		}
		if obs.Accession != "" {
			if _, ok := seen[obs.Accession]; !ok {
				seen[obs.Accession] = struct{}{}
				stats.StudiesOpened++
			}
		}
		if ack.Completed {
			stats.RecordsCompleted++
			if ack.Record != nil {
				stats.RVUSum += ack.Record.RVU
				if cfg.Verbose {
					log.Info(ctx, "study completed",
						logger.String("study_type", ack.Record.StudyType),
						logger.Float64("rvu", ack.Record.RVU),
					)
				}
			}
		}

		if cfg.Interval > 0 {
			time.Sleep(cfg.Interval)
		}
	}

	finish(stats)
	log.Info(ctx, "feed simulation finished",
		logger.Int("ticks", stats.TicksSent),
		logger.Int("studies", stats.StudiesOpened),
		logger.Int("completed", stats.RecordsCompleted),
		logger.Int("failed", stats.Failed),
		logger.Float64("rvu_sum", stats.RVUSum),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// planSpan estimates the synthetic time the plan covers, so observed_at
// timestamps land in the recent past rather than the future.
func planSpan(cfg *Config) time.Duration {
	spacing := cfg.TickSpacing
	if spacing <= 0 {
		spacing = DefaultTickSpacing
	}
	ticksPerStudy := cfg.MaxReadTicks + cfg.GapTicks
	if ticksPerStudy < 1 {
		ticksPerStudy = 1
	}
	return time.Duration(cfg.Studies*ticksPerStudy) * spacing
}

func finish(stats *Stats) *Stats {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	return stats
}
