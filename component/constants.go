package component

// 组件名称常量
const (
	ComponentConfig    = "config"
	ComponentLogger    = "logger"
	ComponentDatabase  = "database"
	ComponentEvent     = "event"
	ComponentTelemetry = "telemetry"
	ComponentCache     = "cache"
)
