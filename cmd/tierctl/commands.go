package main

import (
	"fmt"

	"github.com/KOMKZ/go-yogan-tiercache/cache"
	"github.com/KOMKZ/go-yogan-tiercache/health"
	"github.com/spf13/cobra"
)

func (c *cli) preloadCmd() *cobra.Command {
	var (
		category  string
		policy    string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "preload FILE",
		Short: `Load a JSON-lines file of {"id": ..., "value": ...} records`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.manager(); err != nil {
				return err
			}
			p, err := cache.ParsePolicy(policy)
			if err != nil {
				return err
			}
			n, err := c.cache.GetBatchLoader().LoadChecked(cmd.Context(),
				cache.Category(category), p, cache.JSONLinesFile(args[0]), batchSize)
			if err != nil {
				return fmt.Errorf("preload stopped after %d entries: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d entries into %s\n", n, category)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", string(cache.CategoryGeneric), "target category")
	cmd.Flags().StringVarP(&policy, "policy", "p", "", "freshness policy (static, daily, weekly, monthly, ttl:6h); default is the category policy")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "entries per grouped write (0 = cache.batch_size)")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get CATEGORY ID",
		Aliases: []string{"peek"},
		Short:   "Print a fresh cached value without recomputing it",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.manager()
			if err != nil {
				return err
			}
			v, ok, err := m.Peek(cmd.Context(), cache.Category(args[0]), args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s/%s is not cached or no longer fresh", args[0], args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return nil
		},
	}
}

func (c *cli) invalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate CATEGORY [ID]",
		Short: "Remove one entry, or every entry of a category",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.manager()
			if err != nil {
				return err
			}
			category := cache.Category(args[0])
			if len(args) == 2 {
				if err := m.Invalidate(cmd.Context(), category, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s/%s\n", category, args[1])
				return nil
			}
			if err := m.InvalidateCategory(cmd.Context(), category); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated category %s\n", category)
			return nil
		},
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim expired entries from every tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := c.manager()
			if err != nil {
				return err
			}
			n, err := m.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d expired entries\n", n)
			return nil
		},
	}
}

// tierStats 持久层按分类统计
type tierStats struct {
	Entries int   `json:"entries"`
	Expired int   `json:"expired"`
	Bytes   int64 `json:"bytes"`
}

type statsReport struct {
	Tier       string               `json:"tier"`
	Categories map[string]tierStats `json:"categories"`
	Policies   map[string]string    `json:"policies"`
	Manager    cache.Stats          `json:"manager"`
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print persistent tier contents by category and manager counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := c.manager()
			if err != nil {
				return err
			}
			report := statsReport{
				Tier:       "none",
				Categories: make(map[string]tierStats),
				Policies:   make(map[string]string),
			}

			if disk := m.Disk(); disk != nil {
				report.Tier = disk.Name()
				if scanner, ok := disk.(cache.Scanner); ok {
					now := m.Clock().Now()
					err := scanner.Scan(cmd.Context(), func(e *cache.Entry) bool {
						s := report.Categories[string(e.Key.Category)]
						s.Entries++
						s.Bytes += int64(e.SizeBytes)
						if !cache.IsFresh(e, now) {
							s.Expired++
						}
						report.Categories[string(e.Key.Category)] = s
						return true
					})
					if err != nil {
						return err
					}
				}
			}

			for name := range report.Categories {
				report.Policies[name] = m.PolicyFor(cache.Category(name)).String()
			}
			for category := range cache.DefaultPolicies() {
				report.Policies[string(category)] = m.PolicyFor(category).String()
			}

			report.Manager = m.Stats()
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run the health checks of every component",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp := c.health.Check(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if resp.Status == health.StatusUnhealthy {
				return fmt.Errorf("unhealthy")
			}
			return nil
		},
	}
}
