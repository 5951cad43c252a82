package packet_test

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscap-probes/seap/seap/packet"
	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/sexp"
)

func roundTrip(t *testing.T, p *packet.Packet) *packet.Packet {
	t.Helper()
	wire := packet.Pack(p)
	var buf bytes.Buffer
	buf.Write(sexp.Encode(wire))
	decoded, err := sexp.Decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	got, err := packet.Unpack(decoded)
	require.NoError(t, err)
	return got
}

func TestMsgRoundTrip(t *testing.T) {
	m := &packet.Msg{
		ID:      42,
		Attrs:   []packet.Attr{{Name: packet.ReplyIDAttr, Value: sexp.NewInt(7)}},
		Payload: sexp.NewList(sexp.NewInt(1), sexp.NewInt(2), sexp.NewInt(3)),
	}
	got := roundTrip(t, packet.NewMsg(m))

	assert.Equal(t, packet.MSG, got.Type())
	gotMsg, err := got.AsMsg()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), gotMsg.ID)
	rid, ok := gotMsg.Attr(packet.ReplyIDAttr)
	require.True(t, ok)
	n, _ := rid.Int()
	assert.Equal(t, int64(7), n)
	assert.True(t, sexp.Equal(m.Payload, gotMsg.Payload))
}

func TestCmdRoundTrip(t *testing.T) {
	c := &packet.Cmd{
		ID:      1,
		ReplyID: 0,
		Code:    0x10,
		Flags:   0,
		Class:   packet.ClassUSR,
		Args:    sexp.NewList(),
	}
	got := roundTrip(t, packet.NewCmd(c))

	require.Equal(t, packet.CMD, got.Type())
	gotCmd, err := got.AsCmd()
	require.NoError(t, err)
	assert.Equal(t, c.ID, gotCmd.ID)
	assert.Equal(t, c.Code, gotCmd.Code)
	assert.False(t, gotCmd.IsReply())
}

func TestCmdReplyRoundTrip(t *testing.T) {
	c := &packet.Cmd{
		ID:      2,
		ReplyID: 1,
		Code:    0x10,
		Flags:   packet.FlagReply,
		Class:   packet.ClassUSR,
		Args:    sexp.NewList(sexp.NewString("ok")),
	}
	got := roundTrip(t, packet.NewCmd(c))
	gotCmd, err := got.AsCmd()
	require.NoError(t, err)
	assert.True(t, gotCmd.IsReply())
	assert.Equal(t, uint64(1), gotCmd.ReplyID)
}

func TestErrRoundTripBothSubtypes(t *testing.T) {
	for _, typ := range []packet.ErrType{packet.ErrUser, packet.ErrInt} {
		e := &packet.Err{Type: typ, Code: 5, TargetID: 9, Data: sexp.NewString("boom")}
		got := roundTrip(t, packet.NewErr(e))
		gotErr, err := got.AsErr()
		require.NoError(t, err)
		assert.Equal(t, typ, gotErr.Type)
		assert.Equal(t, uint32(5), gotErr.Code)
		assert.Equal(t, uint64(9), gotErr.TargetID)
		require.NotNil(t, gotErr.Data)
		s, _ := gotErr.Data.Str()
		assert.Equal(t, "boom", s)
	}
}

func TestErrRoundTripNoData(t *testing.T) {
	e := &packet.Err{Type: packet.ErrInt, Code: 1, TargetID: 2, Data: nil}
	got := roundTrip(t, packet.NewErr(e))
	gotErr, err := got.AsErr()
	require.NoError(t, err)
	assert.Nil(t, gotErr.Data)
}

func TestAsMsgFailsOnWrongTag(t *testing.T) {
	p := packet.NewCmd(&packet.Cmd{Code: 1, Class: packet.ClassUSR, Args: sexp.NewList()})
	_, err := p.AsMsg()
	assert.Error(t, err)
}

func TestUnpackMalformedWire(t *testing.T) {
	_, err := packet.Unpack(sexp.NewInt(1))
	assert.True(t, errors.Is(err, seaperr.EINVAL))

	_, err = packet.Unpack(sexp.NewList(sexp.NewString("BOGUS")))
	assert.True(t, errors.Is(err, seaperr.EINVAL))
}
