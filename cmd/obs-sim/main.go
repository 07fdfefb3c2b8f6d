package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/erichter2018/rvutrack/internal/simfeed"
	"github.com/erichter2018/rvutrack/pkg/logger"
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8090", "Base URL of the service")
		studies    = flag.Int("studies", simfeed.DefaultStudies, "Number of reading sessions to simulate")
		minTicks   = flag.Int("min-ticks", simfeed.DefaultMinReadTicks, "Minimum observation ticks per study")
		maxTicks   = flag.Int("max-ticks", simfeed.DefaultMaxReadTicks, "Maximum observation ticks per study")
		gapTicks   = flag.Int("gap-ticks", simfeed.DefaultGapTicks, "Placeholder ticks between studies")
		spacing    = flag.Duration("spacing", simfeed.DefaultTickSpacing, "Synthetic clock advance per tick")
		interval   = flag.Duration("interval", 0, "Real-time delay between POSTs (0 floods)")
		startShift = flag.Bool("start-shift", true, "Start a shift before feeding")
		timeout    = flag.Duration("timeout", simfeed.DefaultTimeout, "HTTP request timeout")
		verbose    = flag.Bool("verbose", false, "Log each completed study")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &simfeed.Config{
		BaseURL:      *baseURL,
		Studies:      *studies,
		MinReadTicks: *minTicks,
		MaxReadTicks: *maxTicks,
		GapTicks:     *gapTicks,
		TickSpacing:  *spacing,
		Interval:     *interval,
		StartShift:   *startShift,
		Timeout:      *timeout,
		Verbose:      *verbose,
	}

	if _, err := simfeed.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "feed simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
