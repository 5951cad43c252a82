package scheme

import (
	"bufio"
	"io"
	"os"

	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/sexp"
)

// rwcConn adapts any io.ReadWriteCloser to Conn using SEAP's canonical
// S-exp wire form. Every built-in scheme (generic, tcp, unix, pipe)
// shares this one codec path; they differ only in how they obtain the
// underlying io.ReadWriteCloser.
type rwcConn struct {
	name string
	rwc  io.ReadWriteCloser
	r    *bufio.Reader
}

func newRWCConn(name string, rwc io.ReadWriteCloser) *rwcConn {
	return &rwcConn{name: name, rwc: rwc, r: bufio.NewReader(rwc)}
}

func (c *rwcConn) Send(v *sexp.Value) (int, error) {
	n, err := c.rwc.Write(sexp.Encode(v))
	if err != nil {
		return n, seaperr.WrapTransport(c.name, err)
	}
	return n, nil
}

func (c *rwcConn) Recv() (*sexp.Value, error) {
	v, err := sexp.Decode(c.r)
	if err != nil {
		return nil, seaperr.WrapTransport(c.name, err)
	}
	return v, nil
}

func (c *rwcConn) Close() error {
	if err := c.rwc.Close(); err != nil {
		return seaperr.WrapTransport(c.name, err)
	}
	return nil
}

// fdPair joins two *os.File half-duplex descriptors into one full-duplex
// io.ReadWriteCloser, the shape spec.md §4.5.3's open_fd_pair adopts.
type fdPair struct {
	in, out *os.File
}

func (p *fdPair) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *fdPair) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fdPair) Close() error {
	errIn := p.in.Close()
	errOut := p.out.Close()
	if errIn != nil {
		return errIn
	}
	return errOut
}
