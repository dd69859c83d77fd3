package config

import (
	"github.com/tauraamui/dragoneye/internal/config"
	"github.com/tauraamui/dragoneye/pkg/configdef"
)

type Destroyer interface {
	configdef.Destroyer
}

func DefaultDestroyer() Destroyer {
	return config.DefaultDestroyer()
}
