package main

import (
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response and checkpoint cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached entries in one namespace, or all of them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ns, _ := cmd.Flags().GetString("namespace")
		namespaces, err := clearTargets(ns)
		if err != nil {
			return err
		}

		c, err := cache.Open(cfg.Cache.Dir)
		if err != nil {
			return err
		}
		for _, n := range namespaces {
			if err := c.Clear(n); err != nil {
				return err
			}
			zap.L().Info("cache cleared", zap.String("namespace", n))
		}
		return nil
	},
}

// clearTargets resolves the --namespace flag; empty means every namespace.
func clearTargets(ns string) ([]string, error) {
	if ns == "" {
		return cache.Namespaces, nil
	}
	if !slices.Contains(cache.Namespaces, ns) {
		return nil, eris.Errorf("unknown cache namespace %q (want one of %v)", ns, cache.Namespaces)
	}
	return []string{ns}, nil
}

func init() {
	cacheClearCmd.Flags().String("namespace", "", "namespace to clear (api_responses, processed_data, checkpoints); empty clears all")
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
