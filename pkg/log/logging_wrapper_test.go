package log_test

import (
	"fmt"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/pkg/log"
)

func TestCameraLoggerPrefixesTitle(t *testing.T) {
	is := is.New(t)

	var infoLogs, warnLogs []string
	infoRef, warnRef := log.Info, log.Warn
	log.Info = func(format string, a ...interface{}) {
		infoLogs = append(infoLogs, fmt.Sprintf(format, a...))
	}
	log.Warn = func(format string, a ...interface{}) {
		warnLogs = append(warnLogs, fmt.Sprintf(format, a...))
	}
	defer func() { log.Info, log.Warn = infoRef, warnRef }()

	cam := log.Camera("Front Door")
	cam.Info("connected to %s", "rtsp://cam")
	cam.Warn("stream stalled")

	is.Equal(infoLogs, []string{"[Front Door] connected to rtsp://cam"})
	is.Equal(warnLogs, []string{"[Front Door] stream stalled"})
}
