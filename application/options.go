package application

// Options 配置来源；优先级 config.yaml < <env>.yaml < ConfigFile < 环境变量
type Options struct {
	ConfigPath string // 目录，包含 config.yaml 和 <env>.yaml
	ConfigFile string // 显式指定的文件（--config），必须存在
	EnvPrefix  string // 如 TIERCACHE，TIERCACHE_CACHE_BATCH_SIZE=50
}
