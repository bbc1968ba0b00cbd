package event

// Config event dispatcher configuration (key "event")
type Config struct {
	Enabled    bool `mapstructure:"enabled"`
	PoolSize   int  `mapstructure:"pool_size"`
	SetAllSync bool `mapstructure:"set_all_sync"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		PoolSize: 100,
	}
}
