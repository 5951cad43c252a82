// Package scheme implements SEAP's scheme registry (component C2): a
// small polymorphic interface bridging the context/receive loop to a
// transport family, plus a const-after-init registry keyed by scheme
// name, per spec.md §9's explicit redesign note ("express this as a
// polymorphic interface ... keep a const registry keyed by scheme name.
// No runtime mutation.").
package scheme

import (
	"os"
	"strings"

	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/sexp"
)

// Conn is the narrow capability set a connected descriptor exposes to
// the core, per spec.md §4.1/§6.
type Conn interface {
	Send(v *sexp.Value) (int, error)
	Recv() (*sexp.Value, error)
	Close() error
}

// Scheme is a transport family identified by a short name. Not every
// scheme implements every capability; a scheme that does not should
// return an EOPNOTSUPP seaperr.Op, per spec.md §4.1.
type Scheme interface {
	// Name is the URI scheme token this Scheme answers to (e.g. "tcp").
	Name() string
	// Connect dials out using remainder, the part of the URI after
	// "scheme://".
	Connect(remainder string, flags uint32) (Conn, error)
	// OpenFDPair adopts an already-open pair of file descriptors as a
	// connected link, in as the read side and out as the write side.
	OpenFDPair(in, out *os.File, flags uint32) (Conn, error)
}

// Registry is an immutable-after-init lookup table from scheme name to
// Scheme, per spec.md §4.1 ("The registry is immutable after
// initialization.").
type Registry struct {
	schemes map[string]Scheme
	sealed  bool
}

// NewRegistry returns an empty, unsealed Registry. Call Register to
// populate it, then Seal (or simply stop calling Register — Find works
// either way, Seal only guards against accidental later mutation).
func NewRegistry() *Registry {
	return &Registry{schemes: make(map[string]Scheme)}
}

// Register adds s to the registry under s.Name(). It panics if called
// after Seal, matching the "no runtime mutation" contract.
func (r *Registry) Register(s Scheme) {
	if r.sealed {
		panic("scheme: Register called on a sealed Registry")
	}
	r.schemes[s.Name()] = s
}

// Seal prevents further Register calls.
func (r *Registry) Seal() { r.sealed = true }

// Find looks up name, reporting EPROTONOSUPPORT if it is not registered.
func (r *Registry) Find(name string) (Scheme, error) {
	s, ok := r.schemes[name]
	if !ok {
		return nil, seaperr.New("scheme.Find", seaperr.EPROTONOSUPPORT)
	}
	return s, nil
}

// Default is the registry built into this module: generic, unix, tcp,
// and pipe, sealed at package init.
var Default = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&genericScheme{})
	r.Register(&tcpScheme{})
	r.Register(&unixScheme{})
	r.Register(&pipeScheme{})
	r.Seal()
	return r
}

// ParseURI splits uri into its scheme token and remainder per spec.md
// §4.1's connect rule: the URI MUST match `scheme "://" remainder`.
func ParseURI(uri string) (scheme, remainder string, err error) {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return "", "", seaperr.New("scheme.ParseURI", seaperr.EINVAL)
	}
	return uri[:idx], uri[idx+len("://"):], nil
}
