package mediaerr

import (
	"errors"
	"fmt"

	"github.com/tauraamui/xerror"
)

const (
	Open      = xerror.Kind("open")
	Timeout   = xerror.Kind("timeout")
	Aborted   = xerror.Kind("aborted")
	Decode    = xerror.Kind("decode")
	Fatal     = xerror.Kind("fatal decode")
	GPU       = xerror.Kind("gpu")
	Recording = xerror.Kind("recording")
)

// Native is an error code returned by the underlying media library,
// translated to its human readable message.
type Native struct {
	Op   string
	Code int
	Msg  string
	err  error
}

func NewNative(op string, code int, msg string, cause error) *Native {
	return &Native{Op: op, Code: code, Msg: msg, err: cause}
}

func (n *Native) Error() string {
	if len(n.Op) == 0 {
		return fmt.Sprintf("%s (code %d)", n.Msg, n.Code)
	}
	return fmt.Sprintf("%s: %s (code %d)", n.Op, n.Msg, n.Code)
}

func (n *Native) Unwrap() error {
	return n.err
}

// Code returns the native code carried anywhere in err's chain.
func Code(err error) (int, bool) {
	var n *Native
	if errors.As(err, &n) {
		return n.Code, true
	}
	return 0, false
}

// Wrap annotates err with a kind and message. Native codes found in the
// chain are attached as a param so they survive into log output.
func Wrap(kind xerror.Kind, err error, format string, a ...interface{}) xerror.I {
	code, hasCode := Code(err)
	xerr := xerror.Errorf(format+": %w", append(a, err)...).AsKind(kind)
	if hasCode {
		xerr = xerr.WithParam("code", code)
	}
	return xerr
}

// WrapAs reports cause as sentinel, so callers match on sentinel while the
// message and native code of cause are kept.
func WrapAs(kind xerror.Kind, sentinel, cause error, format string, a ...interface{}) xerror.I {
	code, hasCode := Code(cause)
	xerr := xerror.Errorf("%s: %w: %s", fmt.Sprintf(format, a...), sentinel, cause).AsKind(kind)
	if hasCode {
		xerr = xerr.WithParam("code", code)
	}
	return xerr
}
