package dragon

import (
	"strings"
	"time"

	"github.com/tauraamui/dragoneye/pkg/camera"
	"github.com/tauraamui/dragoneye/pkg/config/schedule"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	"github.com/tauraamui/dragoneye/pkg/dragon/process"
	"github.com/tauraamui/dragoneye/pkg/video/demux"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
)

func cameraSettings(cam configdef.Camera) camera.Settings {
	return camera.Settings{
		Address: cam.Address,
		Demux: demux.Options{
			Transport:       demux.Transport(strings.ToLower(cam.Transport)),
			ProbeSize:       cam.ProbeSize,
			AnalyseDuration: time.Duration(cam.AnalyseDurationMillis) * time.Millisecond,
			LowLatency:      cam.LowLatency,
			OpenTimeout:     time.Duration(cam.OpenTimeoutSeconds) * time.Second,
			ReadTimeout:     time.Duration(cam.ReadTimeoutSeconds) * time.Second,
		},
		Hardware:       cam.HardwareAcceleration,
		HardwareDevice: cam.HardwareDevice,
		Threads:        cam.DecoderThreads,
	}
}

func coreSettings(cfg configdef.Values, cam configdef.Camera) process.CoreSettings {
	sett := process.CoreSettings{
		SnapshotDir:      cfg.SnapshotDir,
		SnapshotInterval: time.Duration(cfg.SnapshotIntervalSeconds) * time.Second,
	}

	if cam.Record {
		var sched schedule.Schedule
		if !cam.Schedule.Empty() {
			sched = schedule.NewSchedule(cam.Schedule)
		}
		sett.Record = &process.RecordSettings{
			Dir:      cfg.RecordingDir,
			Segment:  time.Duration(cam.SecondsPerSegment) * time.Second,
			Schedule: sched,
		}
	}
	return sett
}

func snapshotFormat(name string) snapshot.Format {
	switch strings.ToLower(name) {
	case "png":
		return snapshot.PNG
	default:
		return snapshot.JPEG
	}
}

func connectTimeout(sett camera.Settings) time.Duration {
	open := sett.Demux.OpenTimeout
	if open <= 0 {
		open = demux.DefaultOpenTimeout
	}
	return 2 * open
}
