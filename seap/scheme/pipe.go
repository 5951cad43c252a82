package scheme

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/openscap-probes/seap/seaperr"
)

// pipeScheme spawns remainder as a subprocess and wires its stdin/stdout
// into a Conn, the shape OpenSCAP probes use when the controller forks a
// probe and talks SEAP over its pipes rather than a socket.
type pipeScheme struct{}

func (pipeScheme) Name() string { return "pipe" }

func (pipeScheme) Connect(remainder string, flags uint32) (Conn, error) {
	args := strings.Fields(remainder)
	if len(args) == 0 {
		return nil, seaperr.New("pipe.Connect", seaperr.EINVAL)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, seaperr.WrapTransport("pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, seaperr.WrapTransport("pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, seaperr.WrapTransport("pipe", err)
	}

	return newRWCConn("pipe", &pipeRWC{cmd: cmd, stdin: stdin, stdout: stdout}), nil
}

func (pipeScheme) OpenFDPair(in, out *os.File, flags uint32) (Conn, error) {
	return nil, seaperr.New("pipe.OpenFDPair", seaperr.EOPNOTSUPP)
}

// pipeRWC joins a spawned subprocess's stdin/stdout into a single
// io.ReadWriteCloser and reaps the process on Close.
type pipeRWC struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *pipeRWC) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *pipeRWC) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *pipeRWC) Close() error {
	errStdin := p.stdin.Close()
	errStdout := p.stdout.Close()
	errWait := p.cmd.Wait()
	if errStdin != nil {
		return errStdin
	}
	if errStdout != nil {
		return errStdout
	}
	return errWait
}
