package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tauraamui/dragoneye/pkg/configdef"
)

const testConfigPath = "/testroot/config/config.json"

type LoadConfigTestSuite struct {
	suite.Suite
	configResolver configdef.Resolver
	fs             afero.Fs
	path           string
	resetEnv       func()
}

func overloadConfigEnv(path string) func() {
	existing, set := os.LookupEnv(configEnvVar)
	os.Setenv(configEnvVar, path)
	return func() {
		if set {
			os.Setenv(configEnvVar, existing)
			return
		}
		os.Unsetenv(configEnvVar)
	}
}

func overloadLoadEnv(overload func() error) func() {
	loadEnvRef := loadEnv
	loadEnv = overload
	return func() { loadEnv = loadEnvRef }
}

func (suite *LoadConfigTestSuite) SetupSuite() {
	suite.fs = afero.NewMemMapFs()
	suite.configResolver = DefaultResolver()

	// use in memory FS in implementation for tests
	fs = suite.fs
}

func (suite *LoadConfigTestSuite) TearDownSuite() {
	fs = afero.NewOsFs()
}

func (suite *LoadConfigTestSuite) SetupTest() {
	suite.resetEnv = overloadConfigEnv(testConfigPath)
	suite.path = testConfigPath
	require.NoError(suite.T(), suite.fs.MkdirAll(filepath.Dir(suite.path), os.ModeDir|os.ModePerm))

	suite.overwriteTestConfig(suite.path,
		`{
			"debug": true,
			"recording_directory": "/recordings",
			"max_recording_age_in_days": 19,
			"cameras": []
		}`,
	)
}

func (suite *LoadConfigTestSuite) overwriteTestConfig(path, config string) {
	require.NoError(suite.T(), afero.WriteFile(suite.fs, path, []byte(config), 0666))
}

func (suite *LoadConfigTestSuite) TearDownTest() {
	suite.resetEnv()
	require.NoError(suite.T(), suite.fs.RemoveAll("/testroot"))
}

func (suite *LoadConfigTestSuite) TestLoadConfig() {
	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), config)

	assert.Equal(suite.T(), true, config.Debug)
	assert.Equal(suite.T(), "/recordings", config.RecordingDir)
	assert.Equal(suite.T(), 19, config.MaxRecordingAgeInDays)
	assert.ElementsMatch(suite.T(), config.Cameras, []configdef.Camera{})
}

func (suite *LoadConfigTestSuite) TestLoadConfigFillsDefaults() {
	suite.overwriteTestConfig(suite.path, `{"cameras": [{"title": "Front", "address": "rtsp://front"}]}`)

	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "jpg", config.SnapshotFormat)
	assert.Equal(suite.T(), "opencv", config.SnapshotEncoder)
	assert.Equal(suite.T(), 90, config.SnapshotQuality)
	assert.Equal(suite.T(), "ffmpeg", config.VideoBackend)
	assert.Equal(suite.T(), 30, config.MaxRecordingAgeInDays)
	assert.Equal(suite.T(), "/testroot/config/dragoneye.db", config.DatabasePath)

	require.Len(suite.T(), config.Cameras, 1)
	assert.Equal(suite.T(), "tcp", config.Cameras[0].Transport)
	assert.Equal(suite.T(), 15, config.Cameras[0].OpenTimeoutSeconds)
	assert.Equal(suite.T(), 10, config.Cameras[0].ReadTimeoutSeconds)
}

func (suite *LoadConfigTestSuite) TestLoadYAMLConfig() {
	path := "/testroot/config/config.yaml"
	os.Setenv(configEnvVar, path)
	suite.overwriteTestConfig(path, `
recording_directory: /recordings
video_backend: mock
cameras:
  - title: Front
    address: rtsp://front/stream
    transport: udp
    record: true
    schedule:
      monday:
        on: "08:00:00"
`)

	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "mock", config.VideoBackend)
	require.Len(suite.T(), config.Cameras, 1)
	assert.Equal(suite.T(), "udp", config.Cameras[0].Transport)
	assert.True(suite.T(), config.Cameras[0].Record)
	require.NotNil(suite.T(), config.Cameras[0].Schedule.Monday.On)
	assert.Equal(suite.T(), 8, config.Cameras[0].Schedule.Monday.On.Hour())
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsOnInvalidJSON() {
	suite.overwriteTestConfig(suite.path, `{"cameras": [}`)

	config, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	require.Empty(suite.T(), config)
	assert.Contains(suite.T(), err.Error(), "parsing configuration error")
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsOnMissingFile() {
	require.NoError(suite.T(), suite.fs.Remove(suite.path))

	_, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	assert.True(suite.T(), errors.Is(err, os.ErrNotExist))
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsOnEnvFileError() {
	reset := overloadLoadEnv(func() error { return errors.New("bad .env") })
	defer reset()

	_, err := suite.configResolver.Resolve()
	assert.EqualError(suite.T(), err, "bad .env")
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsValidationOnDupCameraTitles() {
	suite.overwriteTestConfig(suite.path,
		`{"cameras": [
			{"title": "FakeCam1"},
			{"title": "FakeCam2"},
			{"title": "FakeCam3"},
			{"title": "FakeCam4"},
			{"title": "FakeCam3"}
		]}`,
	)

	config, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	require.Empty(suite.T(), config)

	assert.EqualError(suite.T(), err, "validation failed: camera titles must be unique")
}

func TestLoadConfigTestSuite(t *testing.T) {
	suite.Run(t, &LoadConfigTestSuite{})
}

func TestResolveConfigPathFromUserConfigDir(t *testing.T) {
	reset := overloadConfigEnv("")
	defer reset()
	os.Unsetenv(configEnvVar)

	userConfigDirRef := userConfigDir
	defer func() { userConfigDir = userConfigDirRef }()
	userConfigDir = func() (string, error) { return "/home/test/.config", nil }

	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/test/.config/tacusci/dragoneye/config.json", path)

	userConfigDir = func() (string, error) { return "", errors.New("$HOME is not defined") }
	_, err = resolveConfigPath()
	assert.Contains(t, err.Error(), "unable to resolve config.json location")
}
