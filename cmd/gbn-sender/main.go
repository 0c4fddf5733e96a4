// Command gbn-sender runs the server side of a Go-Back-N session over UDP.
//
// It waits for one receiver on the given port, reads the window size and unit
// count from it and streams the units, applying the fault script of the test
// case file to its transmissions. Corrupted transmissions are recorded in the
// fault log.
//
// Usage:
//
//	gbn-sender [flags] <port> <test_case_file>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-gbn/fault"
	"github.com/arloliu/go-gbn/gbn"
	"github.com/arloliu/go-gbn/internal/cli"
	"github.com/arloliu/go-gbn/metrics"
	"github.com/arloliu/go-gbn/testcase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gbn-sender", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common cli.Flags
	common.Register(fs)
	ackTimeout := fs.Duration("ack-timeout", gbn.DefaultAckTimeout, "how long to wait for an ACK before going back to the window base")
	maxRetries := fs.Int("max-retries", gbn.DefaultMaxRetries, "consecutive timeouts before the window is forced forward")
	faultLog := fs.String("fault-log", fault.DefaultLogPath, "file recording corrupted transmissions")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <port> <test_case_file>\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 1
	}

	if err := serve(ctx, &common, fs.Arg(0), fs.Arg(1), *ackTimeout, *maxRetries, *faultLog, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "gbn-sender: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			fs.Usage()
		}

		return 1
	}

	return 0
}

func serve(ctx context.Context, common *cli.Flags, portArg, casePath string, ackTimeout time.Duration,
	maxRetries int, faultLog string, stdout, stderr io.Writer,
) error {
	port, err := cli.ParsePort(portArg)
	if err != nil {
		return err
	}

	l, err := common.NewLogger(stderr)
	if err != nil {
		return err
	}

	tc, err := testcase.Load(casePath)
	if err != nil {
		return fmt.Errorf("failed to load test case file: %w", err)
	}
	if tc.Truncated {
		l.Warn("test case holds more actions than supported, extra actions ignored", "max", testcase.MaxActions)
	}

	recorder, err := fault.OpenLog(faultLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			l.Warn("failed to close fault log", "path", faultLog, "error", err)
		}
	}()

	sessionMetrics := &gbn.SessionMetrics{}
	stopMetrics, err := common.StartMetrics(l, metrics.NewSessionCollector(gbn.RoleSender, sessionMetrics))
	if err != nil {
		return err
	}
	defer stopMetrics()

	cfg, err := gbn.NewConfig(
		gbn.WithAckTimeout(ackTimeout),
		gbn.WithMaxRetries(maxRetries),
		gbn.WithFaultScript(tc.Actions),
		gbn.WithFaultRecorder(recorder),
		gbn.WithMetrics(sessionMetrics),
		gbn.WithLogger(l),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}

	ep, err := gbn.ListenUDP(fmt.Sprintf(":%d", port), l)
	if err != nil {
		return err
	}
	defer ep.Close()

	fmt.Fprintf(stdout, "Server running on port %d\n", port)

	res, err := gbn.NewSender(ep, cfg).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, res.Verdict.String())

	return nil
}
