package config

import (
	"maps"
	"reflect"
)

// ConfigDiff describes what changed between two configs. Log level and
// reply templates apply live; every other section needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	TemplatesChanged bool

	// RestartRequired lists the top-level sections that changed and are
	// only read at startup.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.TemplatesChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.TemplatesChanged = !maps.Equal(old.Respond.Templates, new.Respond.Templates)

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"nlu", old.NLU, new.NLU},
		{"session", old.Session, new.Session},
		{"cache", old.Cache, new.Cache},
		{"backend", old.Backend, new.Backend},
		{"resilience", old.Resilience, new.Resilience},
		{"telemetry", old.Telemetry, new.Telemetry},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
