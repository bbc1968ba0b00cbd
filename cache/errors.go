package cache

import (
	"github.com/KOMKZ/go-yogan-tiercache/errcode"
)

// 模块码
const (
	ModuleCode = 70 // 缓存模块码
)

// 错误码定义 70xxxx
const (
	ErrCodeInvalidKey        = 1
	ErrCodeInvalidPolicy     = 2
	ErrCodeInvalidArgument   = 3
	ErrCodeCacheMiss         = 4
	ErrCodeTierIO            = 5
	ErrCodeRecomputePanicked = 6
	ErrCodeSerialize         = 7
	ErrCodeManagerClosed     = 8
	ErrCodeConfigInvalid     = 9
)

var (
	// ErrInvalidKey 分类或标识非法，不产生任何修改
	ErrInvalidKey = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInvalidKey,
		"cache", "error.cache.invalid_key", "invalid cache key",
	))

	// ErrInvalidPolicy 新鲜度策略非法（如非正 TTL）
	ErrInvalidPolicy = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInvalidPolicy,
		"cache", "error.cache.invalid_policy", "invalid freshness policy",
	))

	// ErrInvalidArgument nil recompute, bad batch size
	ErrInvalidArgument = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInvalidArgument,
		"cache", "error.cache.invalid_argument", "invalid argument",
	))

	// ErrCacheMiss tier-level sentinel, never returned by Manager.Get
	ErrCacheMiss = errcode.Register(errcode.New(
		ModuleCode, ErrCodeCacheMiss,
		"cache", "error.cache.miss", "cache miss",
	))

	// ErrTierIO 持久层读写失败，Manager 内部吸收
	ErrTierIO = errcode.Register(errcode.New(
		ModuleCode, ErrCodeTierIO,
		"cache", "error.cache.tier_io", "cache tier io failed",
	))

	// ErrRecomputePanicked recompute 发生 panic，所有等待者收到此错误
	ErrRecomputePanicked = errcode.Register(errcode.New(
		ModuleCode, ErrCodeRecomputePanicked,
		"cache", "error.cache.recompute_panicked", "recompute panicked",
	))

	// ErrSerialize 记录或值的编解码失败
	ErrSerialize = errcode.Register(errcode.New(
		ModuleCode, ErrCodeSerialize,
		"cache", "error.cache.serialize", "cache serialization failed",
	))

	// ErrManagerClosed Manager 已关闭
	ErrManagerClosed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeManagerClosed,
		"cache", "error.cache.closed", "cache manager closed",
	))

	// ErrConfigInvalid 缓存配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"cache", "error.cache.config_invalid", "invalid cache config",
	))
)
