package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only log level and encoding are applied live; changes to any other
// section are listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	EncodingChanged bool
	NewEncoding     EncodingConfig

	// RestartRequired names the top-level sections that changed but cannot
	// be swapped while recording, in declaration order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.EncodingChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if old.Encoding != new.Encoding {
		d.EncodingChanged = true
		d.NewEncoding = new.Encoding
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"capture", old.Capture, new.Capture},
		{"codec", old.Codec, new.Codec},
		{"handoff", old.Handoff, new.Handoff},
		{"telemetry", old.Telemetry, new.Telemetry},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
