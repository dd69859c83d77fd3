package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/xerror"
	"gopkg.in/yaml.v2"
)

func load() (configdef.Values, error) {
	var values configdef.Values

	if err := loadEnv(); err != nil {
		return configdef.Values{}, err
	}

	configPath, err := resolveConfigPath()
	if err != nil {
		return configdef.Values{}, err
	}

	log.Info("Resolved config file location: %s", configPath)
	file, err := readConfigFile(configPath)
	if err != nil {
		return configdef.Values{}, err
	}

	if err := unmarshal(configPath, file, &values); err != nil {
		return configdef.Values{}, err
	}

	if err = values.RunValidate(); err != nil {
		return configdef.Values{}, err
	}

	applyDefaults(&values, configPath)

	return values, nil
}

// loadEnv reads a .env file from the working directory into the
// process environment, if there is one.
var loadEnv = func() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return xerror.Errorf("unable to load .env file: %w", err)
}

var readConfigFile = func(path string) ([]byte, error) {
	return afero.ReadFile(fs, path)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, content []byte, values *configdef.Values) error {
	var err error
	if isYAML(path) {
		err = yaml.Unmarshal(content, values)
	} else {
		err = json.Unmarshal(content, values)
	}
	if err != nil {
		return pkgerrors.Errorf("parsing configuration error: %v", err)
	}
	return nil
}

func marshal(path string, values configdef.Values) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(values)
	}
	return json.MarshalIndent(values, "", " ")
}

func resolveConfigPath() (string, error) {
	configPath := os.Getenv(configEnvVar)
	if len(configPath) > 0 {
		return configPath, nil
	}

	configParentDir, err := userConfigDir()
	if err != nil {
		return "", xerror.Errorf("unable to resolve %s location: %w", configFileName, err)
	}

	return filepath.Join(
		configParentDir,
		vendorName,
		appName,
		configFileName), nil
}

func databasePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), databaseName)
}

var userConfigDir = func() (string, error) {
	return os.UserConfigDir()
}
