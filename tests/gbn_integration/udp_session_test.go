// Package gbnintegration runs complete Go-Back-N sessions between a Sender and a
// Receiver over real UDP sockets on the loopback interface.
//
// Both roles load the same test case file, as the sender and receiver commands do.
package gbnintegration

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-gbn/fault"
	"github.com/arloliu/go-gbn/gbn"
	"github.com/arloliu/go-gbn/logger"
	"github.com/arloliu/go-gbn/testcase"
)

type sessionResult struct {
	sender   *gbn.SenderResult
	receiver *gbn.ReceiverResult
	faultLog string
}

func newTestLogger() logger.Logger {
	return logger.NewSlogWriter(io.Discard, logger.DebugLevel, false)
}

// runUDPSession loads the test case at path and runs both roles against each other.
// dial chooses the address the receiver sends to; nil dials the sender directly.
func runUDPSession(t *testing.T, path string, ackTimeout time.Duration, dial func(senderAddr string) string) sessionResult {
	t.Helper()

	tc, err := testcase.Load(path)
	require.NoError(t, err)

	var faultLog bytes.Buffer
	recorder := fault.NewLog(&faultLog)

	senderEP, err := gbn.ListenUDP("127.0.0.1:0", newTestLogger())
	require.NoError(t, err)
	defer senderEP.Close()

	addr := senderEP.LocalAddr().String()
	if dial != nil {
		addr = dial(addr)
	}
	receiverEP, err := gbn.DialUDP(addr, newTestLogger())
	require.NoError(t, err)
	defer receiverEP.Close()

	senderCfg, err := gbn.NewConfig(
		gbn.WithAckTimeout(ackTimeout),
		gbn.WithFaultScript(tc.Actions),
		gbn.WithFaultRecorder(recorder),
		gbn.WithLogger(newTestLogger()),
	)
	require.NoError(t, err)

	receiverCfg, err := gbn.NewConfig(gbn.WithLogger(newTestLogger()))
	require.NoError(t, err)

	sender := gbn.NewSender(senderEP, senderCfg)
	receiver, err := gbn.NewReceiver(receiverEP,
		gbn.SessionParams{WindowSize: tc.WindowSize, TotalUnits: tc.TotalUnits},
		tc.ActionCount(), receiverCfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var res sessionResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.sender, err = sender.Run(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		res.receiver, err = receiver.Run(ctx)
		return err
	})
	require.NoError(t, g.Wait())

	require.NoError(t, recorder.Close())
	res.faultLog = faultLog.String()

	return res
}

func TestUDPSession_NoFault(t *testing.T) {
	res := runUDPSession(t, filepath.Join("testdata", "no_fault.txt"), 500*time.Millisecond, nil)

	assert.Equal(t, 6, res.sender.Window.Base)
	assert.True(t, res.sender.Verdict.Passed)
	assert.Zero(t, res.sender.Retransmits)

	assert.Equal(t, 5, res.receiver.Delivered)
	assert.Equal(t, []byte("ABCDE"), res.receiver.Payloads)
	assert.True(t, res.receiver.Verdict.Passed)
	assert.Empty(t, res.faultLog)
}

func TestUDPSession_TimeoutOnce(t *testing.T) {
	res := runUDPSession(t, filepath.Join("testdata", "timeout_once.txt"), 100*time.Millisecond, nil)

	assert.Equal(t, 1, res.sender.Suppressed)
	assert.Zero(t, res.sender.ForcedSlides)
	assert.True(t, res.sender.Verdict.Passed)

	assert.Equal(t, 5, res.receiver.Delivered)
	assert.True(t, res.receiver.Verdict.Passed)
}

func TestUDPSession_MaxRetryExhaustion(t *testing.T) {
	res := runUDPSession(t, filepath.Join("testdata", "max_retry_exhaustion.txt"), 20*time.Millisecond, nil)

	assert.Equal(t, 6, res.sender.Window.Base)
	assert.Equal(t, 5, res.sender.ForcedSlides)

	assert.Zero(t, res.receiver.CurAck)
	assert.Zero(t, res.receiver.Delivered)
	assert.Equal(t, gbn.ReasonRST, res.receiver.Verdict.Reason)
	assert.False(t, res.receiver.Verdict.Passed)
}

func TestUDPSession_MixedFaultsYAML(t *testing.T) {
	res := runUDPSession(t, filepath.Join("testdata", "mixed_faults.yaml"), 500*time.Millisecond, nil)

	assert.Equal(t, 2, res.sender.Corrupted)
	assert.Equal(t, 1, res.sender.Suppressed)
	assert.Equal(t, 9, res.sender.Window.Base)

	assert.Equal(t, 8, res.receiver.Delivered)
	assert.Equal(t, 2, bytes.Count(res.receiver.Payloads, []byte{'?'}))
	assert.True(t, res.receiver.Verdict.Passed)
	assert.Equal(t, 2, bytes.Count([]byte(res.faultLog), []byte("Corrupted packet: seq=")))
}
