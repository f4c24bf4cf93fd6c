package config

import (
	"os"
	"strings"
)

const ModeEnvKey = "INSTAFIT_MODE"

type Mode string

const (
	DevMode  Mode = "development"
	ProMode  Mode = "production"
	TestMode Mode = "test"
)

func ParseMode(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// CurrentMode reads the run mode from INSTAFIT_MODE on every call.
func CurrentMode() Mode {
	return ParseMode(os.Getenv(ModeEnvKey))
}

// fileNames lists the config base names for mode in load order; later files override earlier ones.
func (m Mode) fileNames(base string) []string {
	names := []string{base, base + ".local"}

	var aliases []string
	switch m {
	case DevMode:
		aliases = []string{"development", "dev"}
	case ProMode:
		aliases = []string{"production", "prod"}
	case TestMode:
		aliases = []string{"test"}
	}
	for _, alias := range aliases {
		names = append(names, base+"."+alias, base+"."+alias+".local")
	}
	return names
}
