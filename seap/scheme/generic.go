package scheme

import (
	"os"

	"github.com/openscap-probes/seap/seaperr"
)

// genericScheme adopts an already-open pair of file descriptors, the
// path SEAP_openfd2 always used in the original C source regardless of
// what the fds actually are. It has no URI form: Connect is not
// supported, per spec.md §4.1's "a missing capability reports
// EOPNOTSUPP".
type genericScheme struct{}

func (genericScheme) Name() string { return "generic" }

func (genericScheme) Connect(remainder string, flags uint32) (Conn, error) {
	return nil, seaperr.New("generic.Connect", seaperr.EOPNOTSUPP)
}

func (genericScheme) OpenFDPair(in, out *os.File, flags uint32) (Conn, error) {
	return newRWCConn("generic", &fdPair{in: in, out: out}), nil
}
