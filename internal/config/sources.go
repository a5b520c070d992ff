package config

// ConfigSource names the layer a value was read from. Later layers win:
// default, user, project, env, flag.
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceUser    ConfigSource = "user"    // ~/.taskq/config.yaml
	SourceProject ConfigSource = "project" // .taskq/config.yaml or --config
	SourceEnv     ConfigSource = "env"
	SourceFlag    ConfigSource = "flag"
)

// TrackedSource is a layer plus the file it came from, if any.
type TrackedSource struct {
	Source ConfigSource
	Path   string
}

func (ts TrackedSource) String() string {
	if ts.Path == "" {
		return string(ts.Source)
	}
	return string(ts.Source) + ": " + ts.Path
}

// TrackedConfig is a merged Config that remembers, per dotted key such as
// "database.driver", which layer set it. Keys never set report
// SourceDefault.
type TrackedConfig struct {
	Config  *Config
	sources map[string]TrackedSource
}

func NewTrackedConfig() *TrackedConfig {
	return &TrackedConfig{Config: Default(), sources: map[string]TrackedSource{}}
}

func (tc *TrackedConfig) record(key string, source ConfigSource, file string) {
	tc.sources[key] = TrackedSource{Source: source, Path: file}
}

func (tc *TrackedConfig) GetSource(key string) ConfigSource {
	return tc.GetTrackedSource(key).Source
}

func (tc *TrackedConfig) GetTrackedSource(key string) TrackedSource {
	if ts, ok := tc.sources[key]; ok {
		return ts
	}
	return TrackedSource{Source: SourceDefault}
}

// Override parses value into key and records source for it. It reports
// false, leaving the config untouched, for unknown keys and unparsable
// values.
func (tc *TrackedConfig) Override(key, value string, source ConfigSource) bool {
	if !setValue(tc.Config, key, value) {
		return false
	}
	tc.record(key, source, "")
	return true
}
