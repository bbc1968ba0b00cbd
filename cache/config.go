package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/component"
	"github.com/KOMKZ/go-yogan-tiercache/database"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/KOMKZ/go-yogan-tiercache/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// 持久层类型
const (
	DiskNone  = "none"
	DiskFile  = "file"
	DiskSQL   = "sql"
	DiskRedis = "redis"
)

// Config cache section of the configuration
type Config struct {
	// Enabled whether to enable caching
	Enabled bool `mapstructure:"enabled"`

	Memory MemoryConfig `mapstructure:"memory"`
	Disk   DiskConfig   `mapstructure:"disk"`

	// Policies category → policy text (daily, weekly, ttl:6h, ...)
	Policies map[string]string `mapstructure:"policies"`

	BatchSize      int `mapstructure:"batch_size"`
	PreloadWorkers int `mapstructure:"preload_workers"`

	// MaintenanceInterval sweep period; 0 disables the scheduled sweep
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`

	Metrics MetricsConfig `mapstructure:"metrics"`

	InvalidationRules []InvalidationRule `mapstructure:"invalidation_rules"`

	// Preload JSON-lines files loaded when the component starts
	Preload []PreloadConfig `mapstructure:"preload"`
}

// MemoryConfig 内存层配置
type MemoryConfig struct {
	Shards     int `mapstructure:"shards"`
	MaxEntries int `mapstructure:"max_entries"` // 0 = unbounded
}

// DiskConfig persistent tier configuration
type DiskConfig struct {
	// Type: file, sql, redis, none
	Type string `mapstructure:"type"`

	// file
	Dir        string `mapstructure:"dir"`
	SyncWrites bool   `mapstructure:"sync_writes"`

	SQL   database.Config `mapstructure:"sql"`
	Redis RedisConfig     `mapstructure:"redis"`
}

// RedisConfig Redis 持久层配置
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// MetricsConfig 指标开关
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// PreloadConfig one warm-up file
type PreloadConfig struct {
	Name     string `mapstructure:"name"`
	Category string `mapstructure:"category"`
	Policy   string `mapstructure:"policy"`
	File     string `mapstructure:"file"`
}

// DefaultConfig 默认配置；decode the configuration over it so unset keys keep these values
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Memory:  MemoryConfig{Shards: defaultShards},
		Disk: DiskConfig{
			Type:       DiskFile,
			Dir:        "./var/tiercache",
			SyncWrites: true,
			SQL: database.Config{
				Driver: "sqlite",
				DSN:    "./var/tiercache.db",
			},
			Redis: RedisConfig{
				Addr:        "127.0.0.1:6379",
				KeyPrefix:   "tiercache:",
				DialTimeout: 5 * time.Second,
			},
		},
		Policies: map[string]string{
			string(CategoryGeo):         "weekly",
			string(CategoryRegulatory):  "monthly",
			string(CategorySubsidy):     "daily",
			string(CategoryClimate):     "ttl:6h",
			string(CategoryExternalAPI): "ttl:15m",
			string(CategoryGeneric):     "daily",
		},
		BatchSize:           DefaultBatchSize,
		PreloadWorkers:      4,
		MaintenanceInterval: 10 * time.Minute,
		Metrics:             MetricsConfig{Enabled: true},
	}
}

// ApplyDefaults fills zero-valued numeric and string fields
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Memory.Shards <= 0 {
		c.Memory.Shards = d.Memory.Shards
	}
	if c.Disk.Type == "" {
		c.Disk.Type = DiskNone
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PreloadWorkers <= 0 {
		c.PreloadWorkers = d.PreloadWorkers
	}
	if c.Disk.Type == DiskSQL {
		c.Disk.SQL.ApplyDefaults()
	}
}

// Validate configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Memory),
		validation.Field(&c.Disk),
		validation.Field(&c.Policies, validation.By(validatePolicies)),
		validation.Field(&c.BatchSize, validation.Min(1)),
		validation.Field(&c.PreloadWorkers, validation.Min(1)),
		validation.Field(&c.MaintenanceInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.InvalidationRules),
		validation.Field(&c.Preload),
	)
}

func (c MemoryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Shards, validation.Min(1), validation.By(func(v any) error {
			n := v.(int)
			if n&(n-1) != 0 {
				return fmt.Errorf("must be a power of two")
			}
			return nil
		})),
		validation.Field(&c.MaxEntries, validation.Min(0)),
	)
}

func (c DiskConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.In(DiskNone, DiskFile, DiskSQL, DiskRedis)),
		validation.Field(&c.Dir, validation.When(c.Type == DiskFile, validation.Required)),
		validation.Field(&c.SQL, validation.Skip.When(c.Type != DiskSQL)),
		validation.Field(&c.Redis, validation.Skip.When(c.Type != DiskRedis)),
	)
}

func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
	)
}

func (c PreloadConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Category, validation.Required, validation.By(func(v any) error {
			return Category(v.(string)).Validate()
		})),
		validation.Field(&c.Policy, validation.By(func(v any) error {
			_, err := ParsePolicy(v.(string))
			return err
		})),
		validation.Field(&c.File, validation.Required),
	)
}

func validatePolicies(v any) error {
	policies, _ := v.(map[string]string)
	for cat, text := range policies {
		if err := Category(cat).Validate(); err != nil {
			return err
		}
		p, err := ParsePolicy(text)
		if err != nil {
			return fmt.Errorf("%s: %w", cat, err)
		}
		if p.IsZero() {
			return fmt.Errorf("%s: policy is empty", cat)
		}
	}
	return nil
}

// CategoryPolicies parsed Policies
func (c Config) CategoryPolicies() (map[Category]Policy, error) {
	out := make(map[Category]Policy, len(c.Policies))
	for cat, text := range c.Policies {
		p, err := ParsePolicy(text)
		if err != nil {
			return nil, err
		}
		if !p.IsZero() {
			out[Category(cat)] = p
		}
	}
	return out, nil
}

// PreloadJobs jobs for the configured preload files
func (c Config) PreloadJobs() ([]PreloadJob, error) {
	jobs := make([]PreloadJob, 0, len(c.Preload))
	for _, pc := range c.Preload {
		p, err := ParsePolicy(pc.Policy)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, PreloadJob{
			Name:      pc.Name,
			Category:  Category(pc.Category),
			Policy:    p,
			Source:    JSONLinesFile(pc.File),
			BatchSize: c.BatchSize,
		})
	}
	return jobs, nil
}

// OpenDisk builds the configured persistent tier; nil for "none"
func OpenDisk(ctx context.Context, cfg DiskConfig, log *logger.CtxZapLogger) (Tier, error) {
	switch cfg.Type {
	case "", DiskNone:
		return nil, nil
	case DiskFile:
		t, err := NewFileTier(cfg.Dir, WithSyncWrites(cfg.SyncWrites))
		if err != nil {
			return nil, err
		}
		return t, nil
	case DiskSQL:
		t, err := OpenSQLTier(cfg.SQL, log)
		if err != nil {
			return nil, err
		}
		return t, nil
	case DiskRedis:
		t, err := OpenRedisTier(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, ErrConfigInvalid.WithMsgf("unknown disk tier type %q", cfg.Type)
	}
}

// NewFromConfig builds tiers and a Manager from a validated Config
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Manager, error) {
	policies, err := cfg.CategoryPolicies()
	if err != nil {
		return nil, ErrConfigInvalid.Wrap(err)
	}

	memory := NewMemoryTier(WithShards(cfg.Memory.Shards), WithMaxEntries(cfg.Memory.MaxEntries))

	var sqlLog *logger.CtxZapLogger
	if cfg.Disk.Type == DiskSQL {
		sqlLog = logger.GetLogger(logger.GormModule)
	}
	disk, err := OpenDisk(ctx, cfg.Disk, sqlLog)
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithCategoryPolicies(policies)}, opts...)
	return NewManager(memory, disk, opts...), nil
}

// LoadConfig decodes the "cache" section over DefaultConfig, applies defaults and validates
func LoadConfig(loader component.ConfigLoader) (Config, error) {
	cfg := DefaultConfig()
	if err := loader.Unmarshal("cache", &cfg); err != nil {
		return Config{}, ErrConfigInvalid.Wrap(err)
	}
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrConfigInvalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
