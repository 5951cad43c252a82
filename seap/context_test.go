package seap_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscap-probes/seap/seap"
	"github.com/openscap-probes/seap/seap/command"
	"github.com/openscap-probes/seap/seap/packet"
	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/seapmetrics"
	"github.com/openscap-probes/seap/sexp"
)

// fdPairLinks returns two connected sds, one per ctx, joined by two
// os.Pipe()s so each side can read what the other wrote.
func fdPairLinks(t *testing.T, client, server *seap.Context) (int, int) {
	t.Helper()
	r1, w1, err := os.Pipe()
	require.NoError(t, err)
	r2, w2, err := os.Pipe()
	require.NoError(t, err)

	clientSD, err := client.OpenFDPair(r1, w2, 0)
	require.NoError(t, err)
	serverSD, err := server.OpenFDPair(r2, w1, 0)
	require.NoError(t, err)
	return clientSD, serverSD
}

func metricValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, g.Write(&out))
	return out.GetGauge().GetValue()
}

func newTestContext(t *testing.T, cfg seap.Config) *seap.Context {
	t.Helper()
	ctx, err := seap.NewContext(cfg)
	require.NoError(t, err)
	return ctx
}

func TestEchoMsgOverFDPair(t *testing.T) {
	client := newTestContext(t, seap.Config{})
	server := newTestContext(t, seap.Config{})
	defer client.Free()
	defer server.Free()

	clientSD, serverSD := fdPairLinks(t, client, server)

	require.NoError(t, client.SendSexp(clientSD, sexp.NewList(sexp.NewString("ping"))))

	got, err := server.RecvMsg(serverSD)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.ID, uint64(1))
	items, _ := got.Payload.List()
	s, _ := items[0].Str()
	assert.Equal(t, "ping", s)

	require.NoError(t, server.Reply(serverSD, &packet.Msg{Payload: sexp.NewList(sexp.NewString("pong"))}, got))

	reply, err := client.RecvMsg(clientSD)
	require.NoError(t, err)
	replyID, ok := reply.Attr(packet.ReplyIDAttr)
	require.True(t, ok)
	n, _ := replyID.Int()
	assert.Equal(t, int64(got.ID), n)
}

func TestInlineCmdDispatch(t *testing.T) {
	client := newTestContext(t, seap.Config{})
	server := newTestContext(t, seap.Config{})
	defer client.Free()
	defer server.Free()

	clientSD, serverSD := fdPairLinks(t, client, server)

	serverCmds, err := server.Commands(serverSD)
	require.NoError(t, err)
	serverCmds.Register(packet.ClassUSR, 0x10, func(sd int, args *sexp.Value) (*sexp.Value, error) {
		return sexp.NewList(sexp.NewString("ok")), nil
	})

	// both sides' receive loops must run concurrently: the server's to
	// dispatch the inbound CMD to the registered handler, the client's to
	// dispatch the resulting reply CMD into the waiter SendCmd registered.
	serverDone := make(chan struct{})
	go func() {
		_, _ = server.RecvMsg(serverSD)
		close(serverDone)
	}()
	clientDone := make(chan struct{})
	go func() {
		_, _ = client.RecvMsg(clientSD)
		close(clientDone)
	}()

	waiter, err := client.SendCmd(clientSD, &packet.Cmd{Code: 0x10, Class: packet.ClassUSR, Args: sexp.NewList()})
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := waiter.Wait(ctxTimeout)
	require.NoError(t, err)
	items, _ := result.List()
	s, _ := items[0].Str()
	assert.Equal(t, "ok", s)

	require.NoError(t, client.Close(clientSD))
	require.NoError(t, server.Close(serverSD))
	<-serverDone
	<-clientDone
}

func TestUnknownSchemeReportsEPROTONOSUPPORT(t *testing.T) {
	ctx := newTestContext(t, seap.Config{})
	defer ctx.Free()
	_, err := ctx.Connect("zzz://x", 0)
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EPROTONOSUPPORT, op.Errno)
}

func TestMalformedURIReportsEINVAL(t *testing.T) {
	ctx := newTestContext(t, seap.Config{})
	defer ctx.Free()
	_, err := ctx.Connect("noscheme", 0)
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EINVAL, op.Errno)
}

func TestDescriptorExhaustionReportsEMFILE(t *testing.T) {
	ctx := newTestContext(t, seap.Config{MaxDescriptors: 4})
	defer ctx.Free()

	for i := 0; i < 4; i++ {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		_, err = ctx.OpenFDPair(r, w, 0)
		require.NoError(t, err)
	}

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	_, err = ctx.OpenFDPair(r, w, 0)
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EMFILE, op.Errno)
}

func TestCloseThenOperationReportsEBADF(t *testing.T) {
	ctx := newTestContext(t, seap.Config{})
	defer ctx.Free()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	sd, err := ctx.OpenFDPair(r, w, 0)
	require.NoError(t, err)

	require.NoError(t, ctx.Close(sd))

	_, err = ctx.RecvMsg(sd)
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EBADF, op.Errno)
}

func TestThreadedCmdDispatchReleasesReceiveLoop(t *testing.T) {
	client := newTestContext(t, seap.Config{})
	server := newTestContext(t, seap.Config{ThreadDispatch: true})
	defer client.Free()
	defer server.Free()

	clientSD, serverSD := fdPairLinks(t, client, server)

	release := make(chan struct{})
	serverCmds, err := server.Commands(serverSD)
	require.NoError(t, err)
	serverCmds.Register(packet.ClassUSR, 0x20, func(sd int, args *sexp.Value) (*sexp.Value, error) {
		<-release
		return sexp.NewList(), nil
	})

	msgArrived := make(chan *packet.Msg, 1)
	go func() {
		msg, err := server.RecvMsg(serverSD)
		if err == nil {
			msgArrived <- msg
		}
	}()

	_, err = client.SendCmd(clientSD, &packet.Cmd{Code: 0x20, Class: packet.ClassUSR, Args: sexp.NewList()})
	require.NoError(t, err)
	require.NoError(t, client.SendSexp(clientSD, sexp.NewList(sexp.NewString("hello"))))

	select {
	case msg := <-msgArrived:
		items, _ := msg.Payload.List()
		s, _ := items[0].Str()
		assert.Equal(t, "hello", s)
	case <-time.After(2 * time.Second):
		t.Fatal("MSG was not delivered while the CMD handler was still blocked")
	}

	close(release)
	require.NoError(t, client.Close(clientSD))
	require.NoError(t, server.Close(serverSD))
}

func TestMetricsTrackDescriptorCount(t *testing.T) {
	ctx := newTestContext(t, seap.Config{})
	defer ctx.Free()
	m := seapmetrics.New()
	ctx.SetMetrics(m)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	sd, err := ctx.OpenFDPair(r, w, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(1), metricValue(t, m.DescriptorsOpen))

	require.NoError(t, ctx.Close(sd))
	assert.Equal(t, float64(0), metricValue(t, m.DescriptorsOpen))
}

func TestCommandTableCancelledWaiterOnClose(t *testing.T) {
	ctx := newTestContext(t, seap.Config{})
	defer ctx.Free()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	sd, err := ctx.OpenFDPair(r, w, 0)
	require.NoError(t, err)

	cmds, err := ctx.Commands(sd)
	require.NoError(t, err)
	waiter := command.NewWaiter()
	require.NoError(t, cmds.Enqueue(99, waiter))

	require.NoError(t, ctx.Close(sd))

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = waiter.Wait(waitCtx)
	assert.ErrorIs(t, err, command.ErrCancelled)
}
