package scheme_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscap-probes/seap/seap/scheme"
	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/sexp"
)

func TestParseURISplitsSchemeAndRemainder(t *testing.T) {
	s, remainder, err := scheme.ParseURI("tcp://127.0.0.1:9999")
	require.NoError(t, err)
	assert.Equal(t, "tcp", s)
	assert.Equal(t, "127.0.0.1:9999", remainder)
}

func TestParseURIRejectsMissingSeparator(t *testing.T) {
	_, _, err := scheme.ParseURI("not-a-uri")
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EINVAL, op.Errno)
}

func TestDefaultRegistryFindUnknownScheme(t *testing.T) {
	_, err := scheme.Default.Find("carrier-pigeon")
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EPROTONOSUPPORT, op.Errno)
}

func TestDefaultRegistryFindsBuiltins(t *testing.T) {
	for _, name := range []string{"generic", "tcp", "unix", "pipe"} {
		s, err := scheme.Default.Find(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
}

func TestGenericSchemeConnectUnsupported(t *testing.T) {
	s, err := scheme.Default.Find("generic")
	require.NoError(t, err)
	_, err = s.Connect("anything", 0)
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EOPNOTSUPP, op.Errno)
}

func TestGenericSchemeOpenFDPairSendRecvRoundTrip(t *testing.T) {
	s, err := scheme.Default.Find("generic")
	require.NoError(t, err)

	r1, w1, err := os.Pipe()
	require.NoError(t, err)
	r2, w2, err := os.Pipe()
	require.NoError(t, err)

	clientConn, err := s.OpenFDPair(r1, w2, 0)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn, err := s.OpenFDPair(r2, w1, 0)
	require.NoError(t, err)
	defer serverConn.Close()

	done := make(chan struct{})
	var recvErr error
	var got *sexp.Value
	go func() {
		defer close(done)
		v, err := serverConn.Recv()
		recvErr = err
		got = v
	}()

	_, err = clientConn.Send(sexp.NewInt(7))
	require.NoError(t, err)
	<-done
	require.NoError(t, recvErr)
	assert.Equal(t, "7", got.String())
}

func TestTCPSchemeOpenFDPairUnsupported(t *testing.T) {
	s, err := scheme.Default.Find("tcp")
	require.NoError(t, err)
	_, err = s.OpenFDPair(nil, nil, 0)
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EOPNOTSUPP, op.Errno)
}

func TestPipeSchemeConnectRejectsEmptyCommand(t *testing.T) {
	s, err := scheme.Default.Find("pipe")
	require.NoError(t, err)
	_, err = s.Connect("", 0)
	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, seaperr.EINVAL, op.Errno)
}

func TestPipeSchemeConnectSpawnsAndEchoesThroughCat(t *testing.T) {
	s, err := scheme.Default.Find("pipe")
	require.NoError(t, err)
	conn, err := s.Connect("cat", 0)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Send(sexp.NewInt(42))
	require.NoError(t, err)

	v, err := conn.Recv()
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
}
