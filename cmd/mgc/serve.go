package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/metrics"
	"github.com/hanpama/mgc/internal/otel"
	"github.com/hanpama/mgc/internal/server"
)

type serveFlags struct {
	addr         string
	pretty       bool
	timeout      time.Duration
	maxBodyBytes int64
	cors         []string
	otelEndpoint string
	otelService  string
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	var sf serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /compile, /evaluate and /metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			eventbus.Use(eventbus.New())
			defer eventbus.Use(nil)
			shutdown, err := otel.Setup(sf.otelEndpoint, sf.otelService)
			if err != nil {
				return fmt.Errorf("otel setup: %w", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			mux, unsubscribe, err := newMux(e, sf)
			if err != nil {
				return err
			}
			defer unsubscribe()

			srv := &http.Server{Addr: sf.addr, Handler: mux}
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			e.logger.Info("listening", zap.String("transport", "http"), zap.String("addr", sf.addr))

			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sf.addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&sf.pretty, "pretty", false, "Pretty-print JSON responses")
	cmd.Flags().DurationVar(&sf.timeout, "timeout", 10*time.Second, "Per-request timeout")
	cmd.Flags().Int64Var(&sf.maxBodyBytes, "max-body-bytes", 8<<20, "Request body limit (0 for none)")
	cmd.Flags().StringSliceVar(&sf.cors, "cors", nil, "Allowed CORS origins")
	cmd.Flags().StringVar(&sf.otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	cmd.Flags().StringVar(&sf.otelService, "otel.service", "mgc", "OpenTelemetry service name")
	return cmd
}

// newMux routes the formula endpoints and /metrics. The returned function
// detaches the metrics from the event bus.
func newMux(e *env, sf serveFlags) (*http.ServeMux, func(), error) {
	opts := []server.Option{server.WithLogger(e.logger.Named("http"))}
	if sf.pretty {
		opts = append(opts, server.WithPretty())
	}
	if sf.timeout > 0 {
		opts = append(opts, server.WithTimeout(sf.timeout))
	}
	if sf.maxBodyBytes > 0 {
		opts = append(opts, server.WithMaxBodyBytes(sf.maxBodyBytes))
	}
	if len(sf.cors) > 0 {
		opts = append(opts, server.WithCORS(sf.cors...))
	}
	h, err := server.New(e.comp, e.exec, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("server init: %w", err)
	}

	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := registerAll(reg, m.PrometheusCollectors()); err != nil {
		return nil, nil, err
	}
	unsubscribe := m.Subscribe()

	mux := http.NewServeMux()
	mux.Handle("/compile", h)
	mux.Handle("/evaluate", h)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux, unsubscribe, nil
}

func registerAll(reg prometheus.Registerer, cs []prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}
