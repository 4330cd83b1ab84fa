package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/yardfinder/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "yardfinder",
	Short: "Find the nearest NJDOT fuel yard",
	Long:  "Geocodes the maintenance fuel yard table through OpenStreetMap Nominatim and answers nearest-yard queries by coordinate or place name.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
