package health

import "time"

// Config 健康检查配置（key "health"）
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	Service string        `mapstructure:"service"` // 写入 Response.Metadata
}

func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Timeout: 5 * time.Second,
		Service: "tiercache",
	}
}
