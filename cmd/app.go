// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskviz/internal/audio"
	"deskviz/internal/config"
	"deskviz/internal/log"
	"deskviz/internal/metrics"
	"deskviz/internal/transport"
	"deskviz/internal/transport/udp"
	"deskviz/internal/tui"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// app owns the capture engine and everything that reads from its sink.
type app struct {
	opts     *options
	preview  bool
	cfg      *config.Config
	sink     *audio.Sink
	gate     *audio.Gate
	engine   *audio.Engine
	recorder *audio.Recorder
	registry *prometheus.Registry

	publisher  *transport.Publisher
	transports []transport.Transport
	metricsSrv *http.Server
}

func newApp(cfg *config.Config, opts *options) (*app, error) {
	a := &app{
		opts:     opts,
		cfg:      cfg,
		sink:     audio.NewSink(),
		gate:     audio.NewGate(),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.NewEngine(a.registry)
	if err != nil {
		return nil, err
	}

	engineOpts := []audio.Option{audio.WithPause(a.gate), audio.WithMetrics(m)}
	if cfg.Recording.Enabled {
		a.recorder = audio.NewRecorder(cfg.Recording.OutputDir)
		engineOpts = append(engineOpts, audio.WithTap(a.recorder))
	}
	a.engine = audio.NewEngine(cfg.EngineConfig(), cfg.Backends(), a.sink, engineOpts...)

	if err := a.openTransports(); err != nil {
		for _, t := range a.transports {
			_ = t.Close()
		}
		return nil, err
	}
	a.publisher = transport.NewPublisher(cfg.Transport.PublishInterval, a.sink, a.transports...)
	return a, nil
}

func (a *app) openTransports() error {
	tc := a.cfg.Transport
	metricsHandler := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})

	if tc.WebSocketEnabled {
		opts := transport.WebSocketOptions{Control: a.gate, Source: a.sink}
		if tc.MetricsEnabled {
			opts.Metrics = metricsHandler
		}
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddress, opts)
		if err != nil {
			return err
		}
		log.Infow("websocket transport listening", "addr", ws.Addr().String())
		a.transports = append(a.transports, ws)
	} else if tc.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		a.metricsSrv = &http.Server{
			Addr:              tc.WebSocketAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if tc.UDPEnabled {
		u, err := udp.NewTransport(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		a.transports = append(a.transports, u)
	}

	if a.cfg.Debug {
		a.transports = append(a.transports, transport.NewLoggingTransport())
	}
	return nil
}

// run starts capture and publishing, blocks until ctx is done or the
// foreground UI exits, then shuts everything down.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if err := a.engine.SetEnabled(ctx, a.cfg.Audio.Enabled); err != nil {
		return err
	}
	if !a.cfg.Audio.Enabled {
		log.Infof("Audio capture disabled in configuration")
	}
	a.publisher.Start()

	if a.metricsSrv != nil {
		g.Go(func() error {
			log.Infow("metrics endpoint listening", "addr", a.metricsSrv.Addr)
			if err := a.metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		a.watchReload(ctx)
		return nil
	})

	if a.preview {
		g.Go(func() error {
			defer cancel()
			return tui.StartPreviewUI(ctx, a.sink, a.gate, a.cfg.Transport.PublishInterval)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// watchReload re-reads the config on SIGHUP and applies the settings that
// can change at runtime: log level and the audio enabled flag.
func (a *app) watchReload(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := loadConfig(a.opts)
			if err != nil {
				log.Errorw("config reload failed", "error", err)
				continue
			}
			if a.preview && !a.opts.Verbose {
				log.SetLevel(log.LevelError)
			}
			a.cfg.LogLevel, a.cfg.Debug, a.cfg.Audio.Enabled = cfg.LogLevel, cfg.Debug, cfg.Audio.Enabled
			if err := a.engine.SetEnabled(ctx, cfg.Audio.Enabled); err != nil {
				log.Errorw("applying audio.enabled failed", "error", err)
			}
			log.Infow("configuration reloaded", "audio_enabled", cfg.Audio.Enabled, "log_level", log.GetLevel().String())
		}
	}
}

func (a *app) shutdown() error {
	var errs []error

	a.engine.Stop()
	if err := a.engine.Err(); err != nil {
		log.Warnw("capture ended with error", "error", err)
	}
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.metricsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, a.metricsSrv.Shutdown(sctx))
		cancel()
	}
	if a.recorder != nil && a.recorder.Path() != "" {
		log.Infof("Recording saved to: %s", a.recorder.Path())
	}
	return errors.Join(errs...)
}

func runEngine(ctx context.Context, opts *options, preview bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if preview && !opts.Verbose {
		// Log lines would tear the alternate screen.
		log.SetLevel(log.LevelError)
	}

	a, err := newApp(cfg, opts)
	if err != nil {
		return err
	}
	a.preview = preview
	return a.run(ctx)
}
