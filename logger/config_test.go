package logger

import (
	"strings"
	"testing"
)

func TestManagerConfig_ApplyDefaults(t *testing.T) {
	cfg := ManagerConfig{Level: "debug", MaxSize: 200}
	cfg.ApplyDefaults()

	if cfg.Level != "debug" || cfg.MaxSize != 200 {
		t.Errorf("user values must survive, got level=%s max_size=%d", cfg.Level, cfg.MaxSize)
	}
	if cfg.BaseLogDir != "logs" || cfg.Encoding != "json" || cfg.MaxBackups != 3 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.EnableConsole || cfg.EnableFile {
		t.Error("booleans keep their zero value")
	}
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	m := NewManager(ManagerConfig{})
	if m.Config().Level != "info" || m.Config().MaxSize != 100 {
		t.Errorf("unexpected config %+v", m.Config())
	}
}

func TestManagerConfig_Validate(t *testing.T) {
	valid := DefaultManagerConfig()
	tests := []struct {
		name    string
		mutate  func(*ManagerConfig)
		wantErr bool
	}{
		{"default", func(*ManagerConfig) {}, false},
		{"console encoding", func(c *ManagerConfig) { c.ConsoleEncoding = "console" }, false},
		{"bad level", func(c *ManagerConfig) { c.Level = "loud" }, true},
		{"bad encoding", func(c *ManagerConfig) { c.Encoding = "xml" }, true},
		{"pretty no longer supported", func(c *ManagerConfig) { c.ConsoleEncoding = "console_pretty" }, true},
		{"max size", func(c *ManagerConfig) { c.MaxSize = 20000 }, true},
		{"max age", func(c *ManagerConfig) { c.MaxAge = 5000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModuleConfig_BuildFilePath(t *testing.T) {
	c := moduleConfig{moduleName: "tiercache", logDir: "logs", EnableLevelInFilename: true}
	if got := c.buildFilePath("error"); !strings.HasSuffix(got, "tiercache-error.log") {
		t.Errorf("unexpected path %s", got)
	}
	c.EnableLevelInFilename = false
	if got := c.buildFilePath("error"); !strings.HasSuffix(got, "tiercache.log") {
		t.Errorf("unexpected path %s", got)
	}
}
