package component

// ConfigLoader read-only configuration access for components.
// Implemented by config.Loader.
type ConfigLoader interface {
	Get(key string) interface{}

	// Unmarshal decodes the section at key into v
	//
	//   var cfg cache.Config
	//   if err := loader.Unmarshal("cache", &cfg); err != nil {
	//       return err
	//   }
	Unmarshal(key string, v interface{}) error

	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	IsSet(key string) bool
}
