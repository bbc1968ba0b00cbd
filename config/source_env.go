package config

import (
	"os"
	"strings"
)

// EnvSource 环境变量数据源
//
// Without bindings every variable starting with "<PREFIX>_" is mapped:
// a double underscore separates path segments, single underscores are kept.
//
//	TIERCACHE_CACHE__MEMORY__MAX_ENTRIES=5000 -> cache.memory.max_entries
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string // config key -> env var name
}

func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding maps a config key to an explicit variable, e.g. ("cache.disk.dir", "CACHE_DIR").
// The prefix is prepended unless already present.
func (s *EnvSource) AddBinding(key, envKey string) {
	s.bindings[key] = envKey
}

func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

func (s *EnvSource) Priority() int {
	return s.priority
}

func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	if len(s.bindings) > 0 {
		for key, envKey := range s.bindings {
			if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
				envKey = s.prefix + "_" + envKey
			}
			if value, ok := os.LookupEnv(envKey); ok {
				result[key] = value
			}
		}
		return result, nil
	}

	if s.prefix == "" {
		return result, nil
	}

	prefix := s.prefix + "_"
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key != "" {
			result[key] = value
		}
	}
	return result, nil
}
