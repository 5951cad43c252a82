// Package seap implements the SEAP context and receive loop (component
// C6): the caller-facing surface that ties the descriptor table, the
// packet codec, the command table, and the scheme registry together.
package seap

import (
	"errors"
	"os"
	"time"

	"github.com/openscap-probes/seap/internal/desctable"
	"github.com/openscap-probes/seap/internal/workerpool"
	"github.com/openscap-probes/seap/seap/command"
	"github.com/openscap-probes/seap/seap/packet"
	"github.com/openscap-probes/seap/seap/scheme"
	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/seaplog"
	"github.com/openscap-probes/seap/seapmetrics"
	"github.com/openscap-probes/seap/sexp"
)

// Context is process- or caller-scoped SEAP state: the descriptor table
// (each descriptor carries its own command table), and the
// concurrency/config knobs selected at construction.
type Context struct {
	cfg      Config
	descs    *desctable.Table
	registry *scheme.Registry
	pool     *workerpool.Pool
	log      seaplog.Clog
	metrics  *seapmetrics.Metrics
}

// NewContext creates a SEAP context. A zero Config uses every default.
func NewContext(cfg Config) (*Context, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return &Context{
		cfg:      cfg,
		descs:    desctable.New(cfg.MaxDescriptors),
		registry: scheme.Default,
		pool:     workerpool.New(),
		log:      seaplog.NewLogger("seap"),
	}, nil
}

// SetLogProvider installs a custom logging backend, enabling output.
func (ctx *Context) SetLogProvider(p seaplog.LogProvider) {
	ctx.log.SetLogProvider(p)
	ctx.log.LogMode(true)
}

// SetMetrics attaches m so descriptor, command-dispatch, and error
// activity is observed on it. Pass nil (the default) to disable metrics.
func (ctx *Context) SetMetrics(m *seapmetrics.Metrics) {
	ctx.metrics = m
}

// Free destroys ctx: closes every still-open descriptor (invoking each
// scheme's Close), waits for any outstanding worker-mode dispatches, and
// discards the descriptor table. Matches spec.md §3's Context lifecycle
// and the ctx_free surface operation.
func (ctx *Context) Free() {
	ctx.descs.CloseAll()
	ctx.pool.Wait()
}

// Connect parses uri, allocates a descriptor, and calls the resolved
// scheme's Connect. On failure the descriptor is not allocated.
func (ctx *Context) Connect(uri string, flags uint32) (int, error) {
	name, remainder, err := scheme.ParseURI(uri)
	if err != nil {
		return -1, err
	}
	sch, err := ctx.registry.Find(name)
	if err != nil {
		return -1, err
	}
	conn, err := sch.Connect(remainder, flags)
	if err != nil {
		return -1, err
	}
	return ctx.addDescriptor(name, conn)
}

// OpenFDPair adopts an already-open pair of file descriptors as a
// descriptor using the generic scheme, per spec.md §4.5.3.
func (ctx *Context) OpenFDPair(in, out *os.File, flags uint32) (int, error) {
	sch, err := ctx.registry.Find("generic")
	if err != nil {
		return -1, err
	}
	conn, err := sch.OpenFDPair(in, out, flags)
	if err != nil {
		return -1, err
	}
	return ctx.addDescriptor("generic", conn)
}

func (ctx *Context) addDescriptor(schemeName string, conn scheme.Conn) (int, error) {
	d := &desctable.Descriptor{
		Conn:   conn,
		Scheme: schemeName,
		Cmds:   command.NewTable(),
	}
	sd, err := ctx.descs.Add(d)
	if err != nil {
		conn.Close()
		return -1, err
	}
	if ctx.metrics != nil {
		ctx.metrics.DescriptorsOpen.Set(float64(ctx.descs.Len()))
	}
	ctx.log.Debug("connected sd=%d scheme=%s", sd, schemeName)
	return sd, nil
}

// Close closes the descriptor sd: calls the scheme's Close, then removes
// sd from the table. If the scheme close fails but the table removal
// succeeds, the scheme error is returned.
func (ctx *Context) Close(sd int) error {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return err
	}
	closeErr := d.Conn.Close()
	d.Cmds.CancelAll(command.ErrCancelled)
	if delErr := ctx.descs.Del(sd); delErr != nil {
		return delErr
	}
	if ctx.metrics != nil {
		ctx.metrics.DescriptorsOpen.Set(float64(ctx.descs.Len()))
	}
	ctx.log.Debug("closed sd=%d", sd)
	return closeErr
}

var errWireViolation = seaperr.New("seap.RecvMsg", seaperr.EWireViolation)

// SendMsg stamps msg with a fresh message id, wraps it in a MSG packet,
// and hands it to the descriptor's scheme. Ownership of msg.Payload
// transfers to the send path regardless of outcome.
func (ctx *Context) SendMsg(sd int, msg *packet.Msg) error {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return err
	}
	msg.ID = d.GenMsgID()
	p := packet.NewMsg(msg)
	return ctx.sendPacket(d, p)
}

func (ctx *Context) sendPacket(d *desctable.Descriptor, p *packet.Packet) error {
	v := packet.Pack(p)
	_, err := d.Conn.Send(v)
	if err != nil {
		if errors.Is(err, seaperr.EINPROGRESS) {
			d.SetSendPending(true)
		}
		return err
	}
	d.SetSendPending(false)
	return nil
}

// SendSexp wraps v in a bodiless MSG and sends it, per SUPPLEMENTED
// FEATURES item 1.
func (ctx *Context) SendSexp(sd int, v *sexp.Value) error {
	return ctx.SendMsg(sd, &packet.Msg{Payload: v})
}

// Reply sets rep's reply-id attribute to req.ID and sends it.
func (ctx *Context) Reply(sd int, rep *packet.Msg, req *packet.Msg) error {
	rep.SetAttr(packet.ReplyIDAttr, sexp.NewInt(int64(req.ID)))
	return ctx.SendMsg(sd, rep)
}

// SendErr assembles and sends a USER or INT error packet.
func (ctx *Context) SendErr(sd int, e *packet.Err) error {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return err
	}
	return ctx.sendPacket(d, packet.NewErr(e))
}

// ReplyErr builds and sends a USER error targeting req's id, per
// SUPPLEMENTED FEATURES item 2.
func (ctx *Context) ReplyErr(sd int, req *packet.Msg, code uint32) error {
	return ctx.SendErr(sd, &packet.Err{
		Type:     packet.ErrUser,
		Code:     code,
		TargetID: req.ID,
	})
}

// RecvMsg runs the receive loop (spec.md §4.5.2) until a MSG packet
// arrives, dispatching CMD and ERR packets internally along the way.
func (ctx *Context) RecvMsg(sd int) (*packet.Msg, error) {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return nil, err
	}
	for {
		v, err := d.Conn.Recv()
		if err != nil {
			return nil, err
		}
		p, err := packet.Unpack(v)
		if err != nil {
			return nil, err
		}
		switch p.Type() {
		case packet.MSG:
			msg, _ := p.AsMsg()
			return msg, nil
		case packet.CMD:
			cmd, _ := p.AsCmd()
			ctx.dispatchCmd(sd, d, cmd)
			ctx.sampleCommandMetrics(d)
		case packet.ERR:
			e, _ := p.AsErr()
			ctx.dispatchErr(d, e)
			ctx.sampleCommandMetrics(d)
		default:
			return nil, errWireViolation
		}
	}
}

// RecvSexp receives the next MSG and returns its payload, discarding
// attributes, per SUPPLEMENTED FEATURES item 1.
func (ctx *Context) RecvSexp(sd int) (*sexp.Value, error) {
	msg, err := ctx.RecvMsg(sd)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// RecvErr pops the oldest pending ERR for sd. Reports ENOENT if none are
// queued.
func (ctx *Context) RecvErr(sd int) (*packet.Err, error) {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return nil, err
	}
	pe, ok := d.RecvErr()
	if !ok {
		return nil, seaperr.New("seap.RecvErr", seaperr.ENOENT)
	}
	return pendingToErr(pe), nil
}

// RecvErrByID pops the first pending ERR on sd whose target id matches
// id. Reports ENOENT if none match.
func (ctx *Context) RecvErrByID(sd int, id uint64) (*packet.Err, error) {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return nil, err
	}
	pe, ok := d.RecvErrByID(id)
	if !ok {
		return nil, seaperr.New("seap.RecvErrByID", seaperr.ENOENT)
	}
	return pendingToErr(pe), nil
}

func (ctx *Context) sampleCommandMetrics(d *desctable.Descriptor) {
	if ctx.metrics != nil {
		ctx.metrics.PendingReplies.Set(float64(d.Cmds.PendingCount()))
	}
}

func pendingToErr(pe desctable.PendingErr) *packet.Err {
	t := packet.ErrUser
	if pe.Type == 1 {
		t = packet.ErrInt
	}
	return &packet.Err{Type: t, Code: pe.Code, TargetID: pe.TargetID, Data: pe.Data}
}

// DescriptorSnapshot is a read-only view of one open descriptor, for
// introspection.
type DescriptorSnapshot struct {
	SD             int
	Scheme         string
	PendingReplies int
}

// DescriptorSnapshot returns a snapshot of every currently open
// descriptor, for the introspection server.
func (ctx *Context) DescriptorSnapshot() []DescriptorSnapshot {
	snaps := ctx.descs.Snapshots()
	out := make([]DescriptorSnapshot, len(snaps))
	for i, s := range snaps {
		out[i] = DescriptorSnapshot{SD: s.SD, Scheme: s.Scheme, PendingReplies: s.PendingReplies}
	}
	return out
}

// Commands returns sd's per-descriptor command table, for registering
// server-side USR/SYS handlers or awaiting a locally issued CMD's reply.
func (ctx *Context) Commands(sd int) (*command.Table, error) {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return nil, err
	}
	return d.Cmds, nil
}

// SendCmd stamps cmd with a fresh command id, sends it, and registers a
// waiter so the caller can block on the reply with the returned Waiter's
// Wait.
func (ctx *Context) SendCmd(sd int, cmd *packet.Cmd) (*command.Waiter, error) {
	d, err := ctx.descs.Get(sd)
	if err != nil {
		return nil, err
	}
	cmd.ID = d.GenCmdID()
	w := command.NewWaiter()
	if err := d.Cmds.Enqueue(cmd.ID, w); err != nil {
		return nil, err
	}
	if err := ctx.sendPacket(d, packet.NewCmd(cmd)); err != nil {
		d.Cmds.Resolve(cmd.ID, nil, err)
		return nil, err
	}
	return w, nil
}

func (ctx *Context) dispatchCmd(sd int, d *desctable.Descriptor, cmd *packet.Cmd) {
	if cmd.IsReply() {
		if err := d.Cmds.ExecWQueue(cmd.ReplyID, cmd.Args); err != nil {
			ctx.log.Warn("sd=%d unsolicited reply for id=%d: %v", sd, cmd.ReplyID, err)
		}
		return
	}

	mode := "inline"
	if ctx.cfg.ThreadDispatch {
		mode = "worker"
	}

	run := func() {
		start := time.Now()
		res, err := d.Cmds.ExecLocal(cmd.Class, sd, cmd.Code, cmd.Args)
		sexp.Free(cmd.Args)
		if ctx.metrics != nil {
			ctx.metrics.CommandDispatch.WithLabelValues(cmd.Class.String(), mode).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			ctx.log.Error("sd=%d command %#x failed: %v", sd, cmd.Code, err)
			res = sexp.NewList()
		}
		reply := &packet.Cmd{
			ReplyID: cmd.ID,
			Code:    cmd.Code,
			Flags:   packet.FlagReply,
			Class:   cmd.Class,
			Args:    res,
		}
		reply.ID = d.GenCmdID()
		if err := ctx.sendPacket(d, packet.NewCmd(reply)); err != nil {
			ctx.log.Error("sd=%d reply send failed: %v", sd, err)
		}
	}

	if ctx.cfg.ThreadDispatch {
		if ctx.metrics != nil {
			ctx.metrics.WorkersRunning.Inc()
			inner := run
			run = func() {
				defer ctx.metrics.WorkersRunning.Dec()
				inner()
			}
		}
		ctx.pool.Dispatch(run)
		return
	}
	run()
}

func (ctx *Context) dispatchErr(d *desctable.Descriptor, e *packet.Err) {
	if ctx.metrics != nil {
		ctx.metrics.ErrorsObserved.WithLabelValues(e.Type.String()).Inc()
	}

	errType := uint8(0)
	if e.Type == packet.ErrInt {
		errType = 1
	}
	if resolveErr := d.Cmds.Resolve(e.TargetID, nil, errors.New(e.Error())); resolveErr == nil {
		sexp.Free(e.Data)
		return
	}
	d.PushPendingErr(desctable.PendingErr{
		Type:     errType,
		Code:     e.Code,
		TargetID: e.TargetID,
		Data:     e.Data,
	})
}
