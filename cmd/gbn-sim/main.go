// Command gbn-sim runs a sender and a receiver in one process, both driven by
// the same test case file, and prints both verdicts.
//
// By default the roles talk over UDP on the loopback interface; -transport=mem
// uses an in-process network instead.
//
// Usage:
//
//	gbn-sim [flags] <test_case_file>
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

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-gbn/fault"
	"github.com/arloliu/go-gbn/gbn"
	"github.com/arloliu/go-gbn/internal/cli"
	"github.com/arloliu/go-gbn/internal/memnet"
	"github.com/arloliu/go-gbn/logger"
	"github.com/arloliu/go-gbn/metrics"
	"github.com/arloliu/go-gbn/testcase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type simFlags struct {
	cli.Flags

	transport  string
	ackTimeout time.Duration
	maxRetries int
	faultLog   string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gbn-sim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f simFlags
	f.Register(fs)
	fs.StringVar(&f.transport, "transport", "udp", "transport between the roles: udp or mem")
	fs.DurationVar(&f.ackTimeout, "ack-timeout", gbn.DefaultAckTimeout, "how long the sender waits for an ACK")
	fs.IntVar(&f.maxRetries, "max-retries", gbn.DefaultMaxRetries, "consecutive timeouts before the window is forced forward")
	fs.StringVar(&f.faultLog, "fault-log", "", "file recording corrupted transmissions; disabled when empty")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <test_case_file>\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	if err := simulate(ctx, &f, fs.Arg(0), stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "gbn-sim: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			fs.Usage()
		}

		return 1
	}

	return 0
}

// newEndpoints connects a sender and a receiver endpoint over the selected transport.
func newEndpoints(transport string, l logger.Logger) (sender, receiver gbn.Endpoint, err error) {
	switch transport {
	case "udp":
		s, err := gbn.ListenUDP("127.0.0.1:0", l)
		if err != nil {
			return nil, nil, err
		}
		r, err := gbn.DialUDP(s.LocalAddr().String(), l)
		if err != nil {
			_ = s.Close()
			return nil, nil, err
		}

		return s, r, nil

	case "mem":
		network := memnet.NewNetwork(0)
		s, err := network.Listen("sender")
		if err != nil {
			return nil, nil, err
		}
		r, err := network.Dial("receiver", "sender")
		if err != nil {
			_ = s.Close()
			return nil, nil, err
		}

		return s, r, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown transport %q", cli.ErrUsage, transport)
	}
}

func simulate(ctx context.Context, f *simFlags, casePath string, stdout, stderr io.Writer) error {
	l, err := f.NewLogger(stderr)
	if err != nil {
		return err
	}

	tc, err := testcase.Load(casePath)
	if err != nil {
		return fmt.Errorf("failed to load test case file: %w", err)
	}

	var recorder fault.Recorder = fault.Discard
	if f.faultLog != "" {
		log, err := fault.OpenLog(f.faultLog)
		if err != nil {
			return err
		}
		defer log.Close()
		recorder = log
	}

	senderMetrics := &gbn.SessionMetrics{}
	receiverMetrics := &gbn.SessionMetrics{}
	stopMetrics, err := f.StartMetrics(l,
		metrics.NewSessionCollector(gbn.RoleSender, senderMetrics),
		metrics.NewSessionCollector(gbn.RoleReceiver, receiverMetrics),
	)
	if err != nil {
		return err
	}
	defer stopMetrics()

	senderCfg, err := gbn.NewConfig(
		gbn.WithAckTimeout(f.ackTimeout),
		gbn.WithMaxRetries(f.maxRetries),
		gbn.WithFaultScript(tc.Actions),
		gbn.WithFaultRecorder(recorder),
		gbn.WithMetrics(senderMetrics),
		gbn.WithLogger(l),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}

	receiverCfg, err := gbn.NewConfig(gbn.WithMetrics(receiverMetrics), gbn.WithLogger(l))
	if err != nil {
		return err
	}

	senderEP, receiverEP, err := newEndpoints(f.transport, l)
	if err != nil {
		return err
	}
	defer senderEP.Close()
	defer receiverEP.Close()

	sender := gbn.NewSender(senderEP, senderCfg)
	receiver, err := gbn.NewReceiver(receiverEP,
		gbn.SessionParams{WindowSize: tc.WindowSize, TotalUnits: tc.TotalUnits},
		tc.ActionCount(), receiverCfg)
	if err != nil {
		return err
	}

	var sres *gbn.SenderResult
	var rres *gbn.ReceiverResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sres, err = sender.Run(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rres, err = receiver.Run(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "sender:   %s (base=%d, rounds=%d, retransmits=%d, forced slides=%d)\n",
		sres.Verdict, sres.Window.Base, sres.Rounds, sres.Retransmits, sres.ForcedSlides)
	fmt.Fprintf(stdout, "receiver: %s (cur_ack=%d, received=%d)\n",
		rres.Verdict, rres.CurAck, rres.Received)

	return nil
}
