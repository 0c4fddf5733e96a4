package gbn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-gbn/fault"
)

// runSession runs both roles over an in-memory network with the same fault
// script, the way both sides load the same test case.
func runSession(t *testing.T, params SessionParams, script fault.Script, ackTimeout time.Duration) (*SenderResult, *ReceiverResult) {
	t.Helper()

	senderEP, receiverEP := newTestPair(t)

	sender := NewSender(senderEP, newTestConfig(t, WithAckTimeout(ackTimeout), WithFaultScript(script)))
	receiver, err := NewReceiver(receiverEP, params, len(script), newTestConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var sres *SenderResult
	var rres *ReceiverResult

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sres, err = sender.Run(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		rres, err = receiver.Run(ctx)
		return err
	})
	require.NoError(t, g.Wait())

	return sres, rres
}

func TestSession_NoFaults(t *testing.T) {
	sres, rres := runSession(t, SessionParams{WindowSize: 3, TotalUnits: 5}, nil, 200*time.Millisecond)

	assert.Equal(t, 6, sres.Window.Base)
	assert.Equal(t, 5, sres.Acked)
	assert.True(t, sres.Verdict.Passed)

	assert.Equal(t, 5, rres.Delivered)
	assert.Equal(t, 5, rres.CurAck)
	assert.Equal(t, []byte("ABCDE"), rres.Payloads)
	assert.True(t, rres.Verdict.Passed)
	assert.Equal(t, ReasonAllDelivered, rres.Verdict.Reason)
}

func TestSession_TimeoutOnce(t *testing.T) {
	script := fault.Script{fault.Timeout, fault.None, fault.None, fault.None, fault.None}
	sres, rres := runSession(t, SessionParams{WindowSize: 2, TotalUnits: 5}, script, 100*time.Millisecond)

	assert.Equal(t, 1, sres.Suppressed)
	assert.Zero(t, sres.ForcedSlides)
	assert.Equal(t, 6, sres.Window.Base)
	assert.True(t, sres.Verdict.Passed)

	assert.Equal(t, 5, rres.Delivered)
	assert.Equal(t, []byte("ABCDE"), rres.Payloads)
	assert.True(t, rres.Verdict.Passed)
}

func TestSession_MaxRetryExhaustion(t *testing.T) {
	script := fault.Script{fault.Timeout, fault.Timeout, fault.Timeout, fault.None, fault.None}
	sres, rres := runSession(t, SessionParams{WindowSize: 2, TotalUnits: 5}, script, 20*time.Millisecond)

	// the sender completes by forcing its window past every unit
	assert.Equal(t, 6, sres.Window.Base)
	assert.Equal(t, 5, sres.ForcedSlides)
	assert.Zero(t, sres.Acked)

	// seq 1 is never sent, so the receiver rejects everything until RST
	assert.Zero(t, rres.CurAck)
	assert.Zero(t, rres.Delivered)
	assert.Empty(t, rres.Payloads)
	assert.Equal(t, ReasonRST, rres.Verdict.Reason)
	assert.False(t, rres.Verdict.Passed)
	assert.Equal(t, "Test failed! Delivered 0 out of 5 packets.", rres.Verdict.String())
}

func TestSession_CorruptionIsUndetected(t *testing.T) {
	script := fault.Script{fault.None, fault.Corrupt}
	sres, rres := runSession(t, SessionParams{WindowSize: 2, TotalUnits: 3}, script, 200*time.Millisecond)

	assert.Equal(t, 1, sres.Corrupted)
	assert.Equal(t, 3, rres.Delivered)
	assert.Equal(t, []byte("A?C"), rres.Payloads)
	assert.True(t, rres.Verdict.Passed)
}
