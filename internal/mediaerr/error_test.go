package mediaerr_test

import (
	"errors"
	"io"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/internal/mediaerr"
)

func TestNativeErrorPrintsMessageAndCode(t *testing.T) {
	is := is.New(t)

	err := mediaerr.NewNative("opening input", -110, "Connection timed out", nil)
	is.Equal(err.Error(), "opening input: Connection timed out (code -110)")

	code, ok := mediaerr.Code(err)
	is.True(ok)
	is.Equal(code, -110)
}

func TestNativeErrorWithoutOpPrintsMessageAndCode(t *testing.T) {
	is := is.New(t)

	err := mediaerr.NewNative("", -541478725, "End of file", io.EOF)
	is.Equal(err.Error(), "End of file (code -541478725)")
	is.True(errors.Is(err, io.EOF))
}

func TestWrapAddsKindAndCodeParam(t *testing.T) {
	is := is.New(t)

	native := mediaerr.NewNative("", -2, "No such file or directory", nil)
	err := mediaerr.Wrap(mediaerr.Open, native, "unable to open %s", "rtsp://cam")

	is.Equal(
		err.Error(),
		"Kind: OPEN | unable to open rtsp://cam: No such file or directory (code -2), Params: [code: {-2}]",
	)
	is.True(errors.Is(err, native))
}

func TestWrapWithoutNativeCodeHasNoParams(t *testing.T) {
	is := is.New(t)

	err := mediaerr.Wrap(mediaerr.GPU, errors.New("out of memory"), "creating output texture")
	is.Equal(err.Error(), "Kind: GPU | creating output texture: out of memory")
}

func TestWrapAsMatchesSentinelAndKeepsCause(t *testing.T) {
	is := is.New(t)

	sentinel := errors.New("stream timed out")
	native := mediaerr.NewNative("", -1414092869, "Immediate exit requested", nil)
	err := mediaerr.WrapAs(mediaerr.Timeout, sentinel, native, "opening %s", "rtsp://cam")

	is.True(errors.Is(err, sentinel))
	is.Equal(
		err.Error(),
		"Kind: TIMEOUT | opening rtsp://cam: stream timed out: Immediate exit requested (code -1414092869), Params: [code: {-1414092869}]",
	)
}
