package process

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tauraamui/dragoneye/pkg/camera"
	"github.com/tauraamui/dragoneye/pkg/config/schedule"
	"github.com/tauraamui/dragoneye/pkg/log"
)

const recordCheckInterval = time.Second

type RecordSettings struct {
	Dir      string
	Segment  time.Duration
	Schedule schedule.Schedule
}

// RecordingPath is <dir>/<title>/<yyyy-mm-dd>/<timestamp>.mp4.
func RecordingPath(dir, title string, t time.Time) string {
	return filepath.Join(dir, title, t.Format("2006-01-02"), t.Format("2006-01-02_15-04-05.000")+".mp4")
}

type recordingController struct {
	cam          Camera
	sett         RecordSettings
	segmentStart time.Time
	off          bool
}

func RecordProcess(cam Camera, sett RecordSettings) func(context.Context) []chan interface{} {
	ctl := &recordingController{cam: cam, sett: sett}
	return Every(recordCheckInterval, func(context.Context) { ctl.tick() }, ctl.stop)
}

func (r *recordingController) tick() {
	now := TimeNow()
	recording := r.cam.Stats().Recording

	if r.sett.Schedule != nil && !r.sett.Schedule.IsOn(now) {
		if !r.off {
			r.off = true
			log.Info("Camera [%s] is scheduled off, not recording", r.cam.Title())
		}
		if recording {
			r.stop()
		}
		return
	}
	r.off = false

	if !recording {
		if r.cam.State() != camera.Connected {
			return
		}
		r.start(now)
		return
	}

	if r.sett.Segment > 0 && now.Sub(r.segmentStart) >= r.sett.Segment {
		r.rotate(now)
	}
}

func (r *recordingController) start(now time.Time) {
	path := RecordingPath(r.sett.Dir, r.cam.Title(), now)
	if err := r.cam.StartRecording(path); err != nil {
		if !errors.Is(err, camera.ErrNotConnected) {
			log.Error(fmt.Errorf("Unable to start recording camera [%s]: %w", r.cam.Title(), err).Error())
		}
		return
	}
	r.segmentStart = now
}

func (r *recordingController) rotate(now time.Time) {
	path := RecordingPath(r.sett.Dir, r.cam.Title(), now)
	if err := r.cam.RotateRecording(path); err != nil {
		if !errors.Is(err, camera.ErrNotRecording) {
			log.Error(fmt.Errorf("Unable to rotate recording for camera [%s]: %w", r.cam.Title(), err).Error())
		}
		return
	}
	r.segmentStart = now
}

func (r *recordingController) stop() {
	if _, err := r.cam.StopRecording(); err != nil && !errors.Is(err, camera.ErrNotRecording) {
		log.Error(fmt.Errorf("Unable to stop recording camera [%s]: %w", r.cam.Title(), err).Error())
	}
}
