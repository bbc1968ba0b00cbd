package cache

import (
	"context"

	"github.com/KOMKZ/go-yogan-tiercache/config"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/samber/do/v2"
)

// ProvideManager builds the Manager from the "cache" section of the injected
// *config.Loader. A disabled cache still gets a memory-only Manager so
// collaborators never need a nil check.
//
//	do.Provide(injector, config.ProvideLoader(config.ProvideLoaderOptions{ConfigPath: "./configs"}))
//	do.Provide(injector, cache.ProvideManager)
//	mgr := do.MustInvoke[*cache.Manager](injector)
func ProvideManager(i do.Injector) (*Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(loader)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		cfg.Disk.Type = DiskNone
	}
	return NewFromConfig(context.Background(), cfg, WithLogger(logger.GetLogger(LogModule)))
}

// ProvideBatchLoader depends on *Manager
func ProvideBatchLoader(i do.Injector) (*BatchLoader, error) {
	m, err := do.Invoke[*Manager](i)
	if err != nil {
		return nil, err
	}
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}
	return NewBatchLoader(m, loader.GetInt("cache.batch_size")), nil
}
