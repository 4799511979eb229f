package main

import (
	"context"
	"os"
	"time"

	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/inference"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
	"github.com/garlicgarrison/go-emotion-recorder/observe"
	"github.com/garlicgarrison/go-emotion-recorder/present"
	"github.com/garlicgarrison/go-emotion-recorder/recorder"
	"github.com/garlicgarrison/go-emotion-recorder/stream"
)

// record wires one session around src and blocks until it stops.
func (a *app) record(ctx context.Context, src stream.Source, label string, heartbeat bool) error {
	cfg := a.cfg
	// reject a missing endpoint before the device is opened
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.For(a.log, logging.CategoryApp)

	client, err := inference.New(cfg.Inference, a.log)
	if err != nil {
		return err
	}

	metrics := observe.Noop()
	if cfg.Metrics.Enabled {
		mp, shutdown, err := observe.InitProvider()
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		if metrics, err = observe.NewMetrics(mp); err != nil {
			return err
		}

		go func() {
			if err := observe.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	console := present.NewConsole(os.Stdout, heartbeat)
	s, err := recorder.NewSession(
		cfg.Session,
		cfg.Segment,
		src,
		client,
		emotion.NewAggregator(cfg.Aggregate),
		recorder.WithSink(console),
		recorder.WithLogger(a.log),
		recorder.WithMetrics(metrics),
		recorder.WithReport(cfg.Report),
		recorder.WithActivity(cfg.Activity),
		recorder.WithLabel(label, cfg.Inference.Endpoint),
	)
	if err != nil {
		return err
	}

	started := time.Now()
	runErr := s.Run(ctx)
	console.Summary(time.Since(started), s.Final(), s.ReportDir())
	return runErr
}
