package seaperr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscap-probes/seap/seaperr"
)

func TestOpUnwrapsToErrno(t *testing.T) {
	err := seaperr.New("scheme.Find", seaperr.EPROTONOSUPPORT)
	assert.ErrorIs(t, err, seaperr.EPROTONOSUPPORT)
	assert.NotErrorIs(t, err, seaperr.EINVAL)

	var op *seaperr.Op
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "scheme.Find", op.Op)
	assert.Equal(t, seaperr.EPROTONOSUPPORT, op.Errno)
}

func TestErrnoStringsAreNamed(t *testing.T) {
	assert.Equal(t, "EINVAL", seaperr.EINVAL.Error())
	assert.Equal(t, "EMFILE", seaperr.EMFILE.Error())
}

func TestWrapTransportNilPassthrough(t *testing.T) {
	assert.Nil(t, seaperr.WrapTransport("tcp", nil))
}

func TestWrapTransportUnwraps(t *testing.T) {
	underlying := errors.New("connection reset")
	wrapped := seaperr.WrapTransport("tcp", underlying)
	assert.ErrorIs(t, wrapped, underlying)

	var transportErr *seaperr.Transport
	require.ErrorAs(t, wrapped, &transportErr)
	assert.Equal(t, "tcp", transportErr.Scheme)
}
