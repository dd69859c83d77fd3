package process

import (
	"time"

	"github.com/tauraamui/dragoneye/pkg/camera"
	"github.com/tauraamui/dragoneye/pkg/video/remux"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
)

// Camera is the part of a camera session the processes drive.
type Camera interface {
	Title() string
	State() camera.State
	Stats() camera.Stats
	StartRecording(path string) error
	RotateRecording(path string) error
	StopRecording() (remux.Summary, error)
	CaptureFrame() ([]byte, bool)
	SnapshotFormat() snapshot.Format
}

var TimeNow = time.Now
