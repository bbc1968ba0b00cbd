package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/KOMKZ/go-yogan-tiercache/application"
	"github.com/KOMKZ/go-yogan-tiercache/cache"
	"github.com/KOMKZ/go-yogan-tiercache/event"
	"github.com/KOMKZ/go-yogan-tiercache/health"
	"github.com/KOMKZ/go-yogan-tiercache/telemetry"
	"github.com/spf13/cobra"
)

// cli 命令共享的组件引用
type cli struct {
	app       *application.CLIApplication
	cache     *cache.Component
	health    *health.Component
	telemetry *telemetry.Component

	metricsExporter string
}

func newApp(out io.Writer) *application.CLIApplication {
	c := &cli{
		cache:     cache.NewComponent(),
		health:    health.NewComponent(),
		telemetry: telemetry.NewComponent(telemetry.WithWriter(out)),
	}

	root := &cobra.Command{
		Use:           "tierctl",
		Short:         "Inspect and maintain a tiercache store",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if c.metricsExporter != "" {
				c.telemetry.SetExporter(c.metricsExporter)
			}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.metricsExporter, "metrics", "",
		`force a metrics exporter for this run ("stdout" prints cache instruments on exit)`)

	c.app = application.NewCLI(root, application.Options{
		ConfigPath: "./configs",
		EnvPrefix:  "TIERCACHE",
	})
	c.app.MustRegister(c.cache, event.NewComponent(), c.telemetry, c.health)
	c.app.AddCommand(
		c.preloadCmd(),
		c.getCmd(),
		c.invalidateCmd(),
		c.sweepCmd(),
		c.statsCmd(),
		c.healthCmd(),
	)
	return c.app
}

// manager 缓存未启用时报错
func (c *cli) manager() (*cache.Manager, error) {
	m := c.cache.GetManager()
	if m == nil {
		return nil, fmt.Errorf("cache is disabled in configuration")
	}
	return m, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
