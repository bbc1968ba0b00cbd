package config

// ConfigSource a prioritized configuration data source
type ConfigSource interface {
	// Name used in logs and errors
	Name() string

	// Priority higher wins on conflicting keys
	//   - config.yaml: 10
	//   - <env>.yaml: 20
	//   - explicit --config file: 30
	//   - environment variables: 50
	Priority() int

	// Load returns a flat map keyed by dotted paths, e.g. "cache.memory.shards"
	Load() (map[string]interface{}, error)
}
