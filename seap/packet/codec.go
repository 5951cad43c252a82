package packet

import (
	"fmt"

	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/sexp"
)

// tag atoms identifying each packet kind on the wire.
const (
	tagMsg = "MSG"
	tagCmd = "CMD"
	tagErr = "ERR"
)

// Pack renders p as its canonical S-expression wire form. The returned
// Value's framing atoms/lists are freshly constructed; p's Payload/Args/
// Data are Cloned in, so the wire Value holds an extra reference to the
// same underlying values rather than a copy of them.
func Pack(p *Packet) *sexp.Value {
	switch p.typ {
	case MSG:
		return packMsg(p.msg)
	case CMD:
		return packCmd(p.cmd)
	case ERR:
		return packErr(p.err)
	default:
		panic(fmt.Sprintf("packet: unknown type %d", p.typ))
	}
}

func packMsg(m *Msg) *sexp.Value {
	attrs := make([]*sexp.Value, len(m.Attrs))
	for i, a := range m.Attrs {
		attrs[i] = sexp.Pair(a.Name, a.Value.Clone())
	}
	return sexp.NewList(
		sexp.NewString(tagMsg),
		sexp.NewInt(int64(m.ID)),
		sexp.NewList(attrs...),
		m.Payload.Clone(),
	)
}

func packCmd(c *Cmd) *sexp.Value {
	return sexp.NewList(
		sexp.NewString(tagCmd),
		sexp.NewInt(int64(c.ID)),
		sexp.NewInt(int64(c.ReplyID)),
		sexp.NewInt(int64(c.Code)),
		sexp.NewInt(int64(c.Flags)),
		sexp.NewString(c.Class.String()),
		c.Args.Clone(),
	)
}

func packErr(e *Err) *sexp.Value {
	var data *sexp.Value
	if e.Data == nil {
		data = sexp.NewList(sexp.NewInt(0))
	} else {
		data = sexp.NewList(sexp.NewInt(1), e.Data.Clone())
	}
	return sexp.NewList(
		sexp.NewString(tagErr),
		sexp.NewString(e.Type.String()),
		sexp.NewInt(int64(e.Code)),
		sexp.NewInt(int64(e.TargetID)),
		data,
	)
}

// decodeErr wraps a malformed-wire detail as an EINVAL-category error, per
// spec.md §4.3: a decode failure carries EINVAL in a seaperr.Op, the same
// code AsMsg/AsCmd/AsErr report, with the offending detail kept in the
// message and the Op reachable via %w.
func decodeErr(detail string) error {
	return fmt.Errorf("%w: %s", seaperr.New("packet.Unpack", seaperr.EINVAL), detail)
}

// Unpack decodes v into a Packet. A malformed or unrecognized shape
// produces an EINVAL-category decode error, per spec.md §4.3.
func Unpack(v *sexp.Value) (*Packet, error) {
	items, ok := v.List()
	if !ok || len(items) == 0 {
		return nil, decodeErr("not a non-empty list")
	}
	tag, ok := items[0].Str()
	if !ok {
		return nil, decodeErr("missing tag")
	}
	switch tag {
	case tagMsg:
		return unpackMsg(items)
	case tagCmd:
		return unpackCmd(items)
	case tagErr:
		return unpackErr(items)
	default:
		return nil, decodeErr(fmt.Sprintf("unrecognized tag %q", tag))
	}
}

func unpackMsg(items []*sexp.Value) (*Packet, error) {
	if len(items) != 4 {
		return nil, decodeErr(fmt.Sprintf("malformed MSG: want 4 fields, got %d", len(items)))
	}
	id, ok := items[1].Int()
	if !ok {
		return nil, decodeErr("malformed MSG: id not an integer")
	}
	attrItems, ok := items[2].List()
	if !ok {
		return nil, decodeErr("malformed MSG: attrs not a list")
	}
	attrs := make([]Attr, 0, len(attrItems))
	for _, a := range attrItems {
		pair, ok := a.List()
		if !ok || len(pair) != 2 {
			return nil, decodeErr("malformed MSG: attribute not a (name value) pair")
		}
		name, ok := pair[0].Str()
		if !ok {
			return nil, decodeErr("malformed MSG: attribute name not a string")
		}
		attrs = append(attrs, Attr{Name: name, Value: pair[1]})
	}
	return NewMsg(&Msg{ID: uint64(id), Attrs: attrs, Payload: items[3]}), nil
}

func unpackCmd(items []*sexp.Value) (*Packet, error) {
	if len(items) != 7 {
		return nil, decodeErr(fmt.Sprintf("malformed CMD: want 7 fields, got %d", len(items)))
	}
	id, ok1 := items[1].Int()
	rid, ok2 := items[2].Int()
	code, ok3 := items[3].Int()
	flags, ok4 := items[4].Int()
	class, ok5 := items[5].Str()
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, decodeErr("malformed CMD: field of wrong type")
	}
	var cls Class
	switch class {
	case "USR":
		cls = ClassUSR
	case "SYS":
		cls = ClassSYS
	default:
		return nil, decodeErr(fmt.Sprintf("malformed CMD: unknown class %q", class))
	}
	return NewCmd(&Cmd{
		ID:      uint64(id),
		ReplyID: uint64(rid),
		Code:    uint32(code),
		Flags:   Flag(flags),
		Class:   cls,
		Args:    items[6],
	}), nil
}

func unpackErr(items []*sexp.Value) (*Packet, error) {
	if len(items) != 5 {
		return nil, decodeErr(fmt.Sprintf("malformed ERR: want 5 fields, got %d", len(items)))
	}
	typ, ok1 := items[1].Str()
	code, ok2 := items[2].Int()
	target, ok3 := items[3].Int()
	if !ok1 || !ok2 || !ok3 {
		return nil, decodeErr("malformed ERR: field of wrong type")
	}
	var etyp ErrType
	switch typ {
	case "USER":
		etyp = ErrUser
	case "INT":
		etyp = ErrInt
	default:
		return nil, decodeErr(fmt.Sprintf("malformed ERR: unknown type %q", typ))
	}
	dataWrapper, ok := items[4].List()
	if !ok || len(dataWrapper) == 0 {
		return nil, decodeErr("malformed ERR: data wrapper")
	}
	present, ok := dataWrapper[0].Int()
	if !ok {
		return nil, decodeErr("malformed ERR: data wrapper flag")
	}
	var data *sexp.Value
	if present != 0 {
		if len(dataWrapper) != 2 {
			return nil, decodeErr("malformed ERR: data wrapper missing payload")
		}
		data = dataWrapper[1]
	}
	return NewErr(&Err{Type: etyp, Code: uint32(code), TargetID: uint64(target), Data: data}), nil
}
