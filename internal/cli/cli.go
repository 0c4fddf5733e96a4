// Package cli holds the flag handling shared by the go-gbn commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-gbn/logger"
	"github.com/arloliu/go-gbn/metrics"
)

// ErrUsage indicates missing or malformed command-line arguments.
var ErrUsage = errors.New("invalid arguments")

// Flags are the flags every command accepts.
type Flags struct {
	LogLevel    string
	MetricsAddr string
}

// Register adds the common flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100); disabled when empty")
}

// NewLogger creates the command logger writing to w and installs it as the
// default logger.
func (f *Flags) NewLogger(w io.Writer) (logger.Logger, error) {
	level, ok := logger.ParseLevel(f.LogLevel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown log level %q", ErrUsage, f.LogLevel)
	}

	l := logger.NewSlogWriter(w, level, false)
	logger.SetLogger(l)

	return l, nil
}

// StartMetrics serves cs when a metrics address is set. The returned function
// stops the server; it is a no-op when metrics are disabled.
func (f *Flags) StartMetrics(l logger.Logger, cs ...prometheus.Collector) (func(), error) {
	if f.MetricsAddr == "" {
		return func() {}, nil
	}

	srv := metrics.NewServer(f.MetricsAddr, l)
	for _, c := range cs {
		if err := srv.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	if err := srv.Start(); err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			l.Warn("failed to stop metrics server", "error", err)
		}
	}, nil
}

// ParsePort parses a UDP port number in [1, 65535].
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid port %q", ErrUsage, s)
	}

	return port, nil
}
