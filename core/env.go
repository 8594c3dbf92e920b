// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"
	"strconv"

	"github.com/devblok/koructx/gfx/vkr"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Environment variables read by LoadEnvironment.
const (
	EnvValidation          = "KORU_VALIDATION"
	EnvLogLevel            = "KORU_LOG_LEVEL"
	EnvMaxSamples          = "KORU_MAX_SAMPLES"
	EnvMinSeverity         = "KORU_MIN_SEVERITY"
	EnvDiagnosticsOptional = "KORU_DIAGNOSTICS_OPTIONAL"
)

// LoadEnvironment reads the given dotenv files, if they exist, and
// applies the KORU_* variables on top of cfg.
func LoadEnvironment(cfg *Configuration, files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return errors.Wrapf(err, "loading %s", file)
		}
	}
	envy.Reload()

	validation, err := envBool(EnvValidation, cfg.Instance.DebugMode)
	if err != nil {
		return err
	}
	cfg.Instance.DebugMode = validation

	optional, err := envBool(EnvDiagnosticsOptional, cfg.Renderer.Diagnostics.Optional)
	if err != nil {
		return err
	}
	cfg.Renderer.Diagnostics.Optional = optional

	if v := envy.Get(EnvMaxSamples, ""); v != "" {
		samples, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvMaxSamples)
		}
		cfg.Renderer.MaxSamples = uint32(samples)
	}

	if v := envy.Get(EnvMinSeverity, ""); v != "" {
		severity, err := vkr.ParseSeverity(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvMinSeverity)
		}
		cfg.Renderer.Diagnostics.MinSeverity = severity
	}
	return nil
}

// LogLevel returns the logrus level named by KORU_LOG_LEVEL, or def.
func LogLevel(def log.Level) (log.Level, error) {
	v := envy.Get(EnvLogLevel, "")
	if v == "" {
		return def, nil
	}
	level, err := log.ParseLevel(v)
	if err != nil {
		return def, errors.Wrapf(err, "%s", EnvLogLevel)
	}
	return level, nil
}

func envBool(key string, def bool) (bool, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, errors.Wrapf(err, "%s", key)
	}
	return b, nil
}
