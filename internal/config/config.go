package config

import (
	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/configdef"
)

const (
	vendorName     = "tacusci"
	appName        = "dragoneye"
	configFileName = "config.json"
	databaseName   = "dragoneye.db"
	configEnvVar   = "DRAGON_EYE_CONFIG"
)

var fs afero.Fs = afero.NewOsFs()

func DefaultCreateResolver() configdef.CreateResolver {
	return defaultCreateResolver{}
}

type defaultCreateResolver struct {
	defaultCreator
	defaultResolver
}
