package scheme

import (
	"net"
	"os"

	"github.com/openscap-probes/seap/seaperr"
)

// tcpScheme dials out over TCP; remainder is a "host:port" address.
type tcpScheme struct{}

func (tcpScheme) Name() string { return "tcp" }

func (tcpScheme) Connect(remainder string, flags uint32) (Conn, error) {
	conn, err := net.Dial("tcp", remainder)
	if err != nil {
		return nil, seaperr.WrapTransport("tcp", err)
	}
	return newRWCConn("tcp", conn), nil
}

func (tcpScheme) OpenFDPair(in, out *os.File, flags uint32) (Conn, error) {
	return nil, seaperr.New("tcp.OpenFDPair", seaperr.EOPNOTSUPP)
}

// unixScheme dials out over a Unix domain socket; remainder is a
// filesystem path.
type unixScheme struct{}

func (unixScheme) Name() string { return "unix" }

func (unixScheme) Connect(remainder string, flags uint32) (Conn, error) {
	conn, err := net.Dial("unix", remainder)
	if err != nil {
		return nil, seaperr.WrapTransport("unix", err)
	}
	return newRWCConn("unix", conn), nil
}

func (unixScheme) OpenFDPair(in, out *os.File, flags uint32) (Conn, error) {
	return nil, seaperr.New("unix.OpenFDPair", seaperr.EOPNOTSUPP)
}
