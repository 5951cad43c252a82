// Package seaperr defines the numeric error taxonomy SEAP propagates
// across the scheme boundary, per spec.md §7: transport errors keep the
// transport's own code; everything the core itself raises is one of the
// Errno values below.
package seaperr

import "fmt"

// Errno is a SEAP-level error code, named after the POSIX errno it
// mirrors so callers coming from the C implementation recognize it.
type Errno int

// The core's error vocabulary. Transport errors are wrapped as-is and are
// not members of this set; see Transport.
const (
	_ Errno = iota
	EINVAL
	EBADF
	EMFILE
	EPROTONOSUPPORT
	EOPNOTSUPP
	EINPROGRESS
	ENOENT
	// EWireViolation marks an impossible-to-reach decode branch (an
	// unknown packet tag survived Unpack). spec.md §7: fatal in debug
	// builds, a plain error in release builds. This module always
	// returns the error; no build of it aborts on this code.
	EWireViolation
)

var names = map[Errno]string{
	EINVAL:          "EINVAL",
	EBADF:           "EBADF",
	EMFILE:          "EMFILE",
	EPROTONOSUPPORT: "EPROTONOSUPPORT",
	EOPNOTSUPP:      "EOPNOTSUPP",
	EINPROGRESS:     "EINPROGRESS",
	ENOENT:          "ENOENT",
	EWireViolation:  "EWIREVIOLATION",
}

func (e Errno) Error() string {
	if name, ok := names[e]; ok {
		return name
	}
	return fmt.Sprintf("seaperr.Errno(%d)", int(e))
}

// Op wraps an Errno with the operation that raised it, matching the
// teacher's habit of naming the failing call in debug traces
// (cs104/config.go's "<field> not in [...]" messages) without losing the
// machine-checkable code: errors.Is(err, seaperr.EBADF) still works
// because Op implements Unwrap.
type Op struct {
	Op    string
	Errno Errno
}

func (e *Op) Error() string { return e.Op + ": " + e.Errno.Error() }
func (e *Op) Unwrap() error { return e.Errno }

// New wraps errno with the operation name that raised it.
func New(op string, errno Errno) error {
	return &Op{Op: op, Errno: errno}
}

// Transport wraps an error returned by a scheme.Scheme or scheme.Conn
// capability so it
// can be told apart from a seaperr.Errno while still satisfying the
// standard errors.Unwrap chain, per spec.md §7's "transport errors are
// propagated with the transport's numeric code".
type Transport struct {
	Scheme string
	Err    error
}

func (e *Transport) Error() string { return e.Scheme + ": " + e.Err.Error() }
func (e *Transport) Unwrap() error { return e.Err }

// WrapTransport wraps err as a scheme-originated transport error. It
// returns nil if err is nil.
func WrapTransport(scheme string, err error) error {
	if err == nil {
		return nil
	}
	return &Transport{Scheme: scheme, Err: err}
}
