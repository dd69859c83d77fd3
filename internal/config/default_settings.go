package config

import "github.com/tauraamui/dragoneye/pkg/configdef"

type defaultSettingKey uint

const (
	MAXRECORDINGAGEINDAYS defaultSettingKey = 0x0
	CAMERAS               defaultSettingKey = 0x1
	SNAPSHOTFORMAT        defaultSettingKey = 0x2
	SNAPSHOTENCODER       defaultSettingKey = 0x3
	SNAPSHOTQUALITY       defaultSettingKey = 0x4
	VIDEOBACKEND          defaultSettingKey = 0x5
	TRANSPORT             defaultSettingKey = 0x6
	OPENTIMEOUTSECONDS    defaultSettingKey = 0x7
	READTIMEOUTSECONDS    defaultSettingKey = 0x8
)

var defaultSettings = map[defaultSettingKey]interface{}{
	MAXRECORDINGAGEINDAYS: 30,
	CAMERAS:               []configdef.Camera{},
	SNAPSHOTFORMAT:        "jpg",
	SNAPSHOTENCODER:       "opencv",
	SNAPSHOTQUALITY:       90,
	VIDEOBACKEND:          "ffmpeg",
	TRANSPORT:             "tcp",
	OPENTIMEOUTSECONDS:    15,
	READTIMEOUTSECONDS:    10,
}

func applyDefaults(values *configdef.Values, configPath string) {
	setString(&values.SnapshotFormat, SNAPSHOTFORMAT)
	setString(&values.SnapshotEncoder, SNAPSHOTENCODER)
	setString(&values.VideoBackend, VIDEOBACKEND)
	setInt(&values.SnapshotQuality, SNAPSHOTQUALITY)
	setInt(&values.MaxRecordingAgeInDays, MAXRECORDINGAGEINDAYS)

	if len(values.DatabasePath) == 0 {
		values.DatabasePath = databasePath(configPath)
	}

	if values.Cameras == nil {
		values.Cameras = defaultSettings[CAMERAS].([]configdef.Camera)
	}

	for i := range values.Cameras {
		camera := &values.Cameras[i]
		setString(&camera.Transport, TRANSPORT)
		setInt(&camera.OpenTimeoutSeconds, OPENTIMEOUTSECONDS)
		setInt(&camera.ReadTimeoutSeconds, READTIMEOUTSECONDS)
	}
}

func setString(dst *string, key defaultSettingKey) {
	if len(*dst) == 0 {
		*dst = defaultSettings[key].(string)
	}
}

func setInt(dst *int, key defaultSettingKey) {
	if *dst == 0 {
		*dst = defaultSettings[key].(int)
	}
}
