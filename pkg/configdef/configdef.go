package configdef

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tauraamui/dragoneye/pkg/config/schedule"
	"gopkg.in/dealancer/validate.v2"
)

var ErrConfigAlreadyExists = errors.New("config file already exists")

type Camera struct {
	Title                 string        `json:"title" yaml:"title" validate:"empty=false"`
	Address               string        `json:"address" yaml:"address"`
	Transport             string        `json:"transport" yaml:"transport"`
	LowLatency            bool          `json:"low_latency" yaml:"low_latency"`
	ProbeSize             int           `json:"probe_size" yaml:"probe_size" validate:"gte=0"`
	AnalyseDurationMillis int           `json:"analyse_duration_millis" yaml:"analyse_duration_millis" validate:"gte=0"`
	OpenTimeoutSeconds    int           `json:"open_timeout_seconds" yaml:"open_timeout_seconds" validate:"gte=0 & lte=300"`
	ReadTimeoutSeconds    int           `json:"read_timeout_seconds" yaml:"read_timeout_seconds" validate:"gte=0 & lte=300"`
	HardwareAcceleration  string        `json:"hardware_acceleration" yaml:"hardware_acceleration"`
	HardwareDevice        string        `json:"hardware_device" yaml:"hardware_device"`
	DecoderThreads        int           `json:"decoder_threads" yaml:"decoder_threads" validate:"gte=0 & lte=64"`
	Record                bool          `json:"record" yaml:"record"`
	SecondsPerSegment     int           `json:"seconds_per_segment" yaml:"seconds_per_segment" validate:"gte=0"`
	Disabled              bool          `json:"disabled" yaml:"disabled"`
	Schedule              schedule.Week `json:"schedule" yaml:"schedule"`
}

type Archive struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	Bucket            string `json:"bucket" yaml:"bucket"`
	Region            string `json:"region" yaml:"region"`
	Prefix            string `json:"prefix" yaml:"prefix"`
	Endpoint          string `json:"endpoint" yaml:"endpoint"`
	DeleteAfterUpload bool   `json:"delete_after_upload" yaml:"delete_after_upload"`
}

type Values struct {
	Debug                   bool     `json:"debug" yaml:"debug"`
	SnapshotDir             string   `json:"snapshot_directory" yaml:"snapshot_directory"`
	SnapshotFormat          string   `json:"snapshot_format" yaml:"snapshot_format"`
	SnapshotEncoder         string   `json:"snapshot_encoder" yaml:"snapshot_encoder"`
	SnapshotQuality         int      `json:"snapshot_quality" yaml:"snapshot_quality" validate:"gte=0 & lte=100"`
	SnapshotIntervalSeconds int      `json:"snapshot_interval_seconds" yaml:"snapshot_interval_seconds" validate:"gte=0"`
	RecordingDir            string   `json:"recording_directory" yaml:"recording_directory"`
	MaxRecordingAgeInDays   int      `json:"max_recording_age_in_days" yaml:"max_recording_age_in_days" validate:"gte=0 & lte=365"`
	VideoBackend            string   `json:"video_backend" yaml:"video_backend"`
	DatabasePath            string   `json:"database_path" yaml:"database_path"`
	Archive                 Archive  `json:"archive" yaml:"archive"`
	Cameras                 []Camera `json:"cameras" yaml:"cameras"`
}

// RunValidate checks the struct tags of every nested value before the
// cross field checks in Validate.
func (v Values) RunValidate() error {
	return validate.Validate(&v)
}

func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if hasDupCameraTitles(v.Cameras) {
		return fmt.Errorf(validationErrorHeader, errors.New("camera titles must be unique"))
	}

	if err := checkOneOf("snapshot format", v.SnapshotFormat, "", "jpg", "jpeg", "png"); err != nil {
		return fmt.Errorf(validationErrorHeader, err)
	}

	if err := checkOneOf("snapshot encoder", v.SnapshotEncoder, "", "opencv", "go"); err != nil {
		return fmt.Errorf(validationErrorHeader, err)
	}

	if v.SnapshotIntervalSeconds > 0 && len(v.SnapshotDir) == 0 {
		return fmt.Errorf(validationErrorHeader, errors.New("snapshot directory is required when snapshots are enabled"))
	}

	if v.Archive.Enabled && len(v.Archive.Bucket) == 0 {
		return fmt.Errorf(validationErrorHeader, errors.New("archive bucket is required when archiving is enabled"))
	}

	for _, cam := range v.Cameras {
		if err := checkOneOf("transport", cam.Transport, "", "tcp", "udp"); err != nil {
			return fmt.Errorf(validationErrorHeader, fmt.Errorf("camera %s: %w", cam.Title, err))
		}
		if cam.Record && !cam.Disabled && len(v.RecordingDir) == 0 {
			return fmt.Errorf(validationErrorHeader, fmt.Errorf("camera %s: recording directory is required to record", cam.Title))
		}
	}
	return nil
}

func checkOneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("unknown %s: %s", name, value)
}

func hasDupCameraTitles(cameras []Camera) bool {
	seen := make(map[string]struct{}, len(cameras))
	for _, cam := range cameras {
		if _, ok := seen[cam.Title]; ok {
			return true
		}
		seen[cam.Title] = struct{}{}
	}
	return false
}
