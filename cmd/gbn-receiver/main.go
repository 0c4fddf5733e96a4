// Command gbn-receiver runs the client side of a Go-Back-N session over UDP.
//
// It connects to a sender on the given port, requests the window size and unit
// count from its test case file and accepts units strictly in order until all
// are delivered or the sender closes the session.
//
// Usage:
//
//	gbn-receiver [flags] <port> <test_case_file>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

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
	fs := flag.NewFlagSet("gbn-receiver", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common cli.Flags
	common.Register(fs)
	host := fs.String("host", "127.0.0.1", "sender host")
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

	if err := receive(ctx, &common, *host, fs.Arg(0), fs.Arg(1), stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "gbn-receiver: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			fs.Usage()
		}

		return 1
	}

	return 0
}

func receive(ctx context.Context, common *cli.Flags, host, portArg, casePath string, stdout, stderr io.Writer) error {
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
		return fmt.Errorf("no test case read from file: %w", err)
	}

	params := gbn.SessionParams{WindowSize: tc.WindowSize, TotalUnits: tc.TotalUnits}

	sessionMetrics := &gbn.SessionMetrics{}
	stopMetrics, err := common.StartMetrics(l, metrics.NewSessionCollector(gbn.RoleReceiver, sessionMetrics))
	if err != nil {
		return err
	}
	defer stopMetrics()

	cfg, err := gbn.NewConfig(gbn.WithMetrics(sessionMetrics), gbn.WithLogger(l))
	if err != nil {
		return err
	}

	ep, err := gbn.DialUDP(net.JoinHostPort(host, strconv.Itoa(port)), l)
	if err != nil {
		return err
	}
	defer ep.Close()

	receiver, err := gbn.NewReceiver(ep, params, tc.ActionCount(), cfg)
	if err != nil {
		return err
	}

	res, err := receiver.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, res.Verdict.String())

	return nil
}
