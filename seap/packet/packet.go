// Package packet implements SEAP's packet codec (component C4): the
// MSG/CMD/ERR tagged union and its translation to and from canonical
// S-expression wire form. No other component is allowed to know the
// encoding; seap/command and the context/receive loop treat Packet
// values as opaque tagged values, exactly as spec.md §4.3 requires.
package packet

import (
	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/sexp"
)

// Type tags the three packet shapes spec.md §3 defines.
type Type uint8

// The three packet kinds SEAP multiplexes over one transport.
const (
	MSG Type = iota
	CMD
	ERR
)

func (t Type) String() string {
	switch t {
	case MSG:
		return "MSG"
	case CMD:
		return "CMD"
	case ERR:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// ReplyIDAttr is the reserved MSG attribute name carrying an echoed
// message id for replies, per spec.md §3.
const ReplyIDAttr = "reply-id"

// Attr is one (name, value) entry of a MSG's attribute list. Order is
// preserved on the wire but irrelevant to semantics.
type Attr struct {
	Name  string
	Value *sexp.Value
}

// Msg is the application-message packet shape.
type Msg struct {
	ID      uint64
	Attrs   []Attr
	Payload *sexp.Value
}

// Attr returns the value of the named attribute, if present.
func (m *Msg) Attr(name string) (*sexp.Value, bool) {
	for _, a := range m.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// SetAttr sets (overwriting any existing entry of the same name) the
// named attribute.
func (m *Msg) SetAttr(name string, value *sexp.Value) {
	for i, a := range m.Attrs {
		if a.Name == name {
			m.Attrs[i].Value = value
			return
		}
	}
	m.Attrs = append(m.Attrs, Attr{Name: name, Value: value})
}

// Class distinguishes the two command-scoped tables spec.md §4.4 names.
type Class uint8

// The two command classes.
const (
	ClassUSR Class = iota
	ClassSYS
)

func (c Class) String() string {
	if c == ClassSYS {
		return "SYS"
	}
	return "USR"
}

// Flag is a bitset on a Cmd packet.
type Flag uint32

// FlagReply marks a CMD packet as carrying the result of an earlier CMD;
// ReplyID is then that earlier CMD's ID.
const FlagReply Flag = 1 << 0

// Cmd is the remote-command-invocation packet shape.
type Cmd struct {
	ID      uint64
	ReplyID uint64
	Code    uint32
	Flags   Flag
	Class   Class
	Args    *sexp.Value
}

// IsReply reports whether c carries the result of an earlier command.
func (c *Cmd) IsReply() bool { return c.Flags&FlagReply != 0 }

// ErrType distinguishes the two ERR packet subtypes spec.md §3 defines.
type ErrType uint8

// The two ERR subtypes.
const (
	ErrUser ErrType = iota
	ErrInt
)

func (t ErrType) String() string {
	if t == ErrInt {
		return "INT"
	}
	return "USER"
}

// Err is the error packet shape.
type Err struct {
	Type     ErrType
	Code     uint32
	TargetID uint64
	Data     *sexp.Value // nil if absent
}

func (e *Err) Error() string {
	return "seap: " + e.Type.String() + " error " + itoa(e.Code)
}

// Packet is the tagged union over MSG, CMD, and ERR.
type Packet struct {
	typ Type
	msg *Msg
	cmd *Cmd
	err *Err
}

// NewMsg wraps m as a MSG packet.
func NewMsg(m *Msg) *Packet { return &Packet{typ: MSG, msg: m} }

// NewCmd wraps c as a CMD packet.
func NewCmd(c *Cmd) *Packet { return &Packet{typ: CMD, cmd: c} }

// NewErr wraps e as an ERR packet.
func NewErr(e *Err) *Packet { return &Packet{typ: ERR, err: e} }

// Type returns the packet's tag.
func (p *Packet) Type() Type { return p.typ }

// AsMsg returns p's MSG payload, failing if p is not a MSG packet.
func (p *Packet) AsMsg() (*Msg, error) {
	if p.typ != MSG {
		return nil, seaperr.New("packet.AsMsg", seaperr.EINVAL)
	}
	return p.msg, nil
}

// AsCmd returns p's CMD payload, failing if p is not a CMD packet.
func (p *Packet) AsCmd() (*Cmd, error) {
	if p.typ != CMD {
		return nil, seaperr.New("packet.AsCmd", seaperr.EINVAL)
	}
	return p.cmd, nil
}

// AsErr returns p's ERR payload, failing if p is not an ERR packet.
func (p *Packet) AsErr() (*Err, error) {
	if p.typ != ERR {
		return nil, seaperr.New("packet.AsErr", seaperr.EINVAL)
	}
	return p.err, nil
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
