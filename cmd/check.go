package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the resolved match parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		fmt.Println("Configuration OK")
		fmt.Printf("  Profile:          %s\n", cfg.Match.Profile)
		fmt.Printf("  Metric:           %s\n", cfg.Match.Metric)
		fmt.Printf("  Embedding dim:    %d\n", cfg.Match.EmbeddingDim)
		fmt.Printf("  Confident:        %.3f\n", cfg.Match.ConfidentThreshold)
		fmt.Printf("  Uncertain:        %.3f\n", cfg.Match.UncertainThreshold)
		fmt.Printf("  Min observations: %d\n", cfg.Match.MinObservations)
		fmt.Printf("  Idle timeout:     %s\n", cfg.Match.SessionIdleTimeout)
		if cfg.Encoder.URL != "" {
			fmt.Printf("  Encoder:          %s (timeout %s)\n", cfg.Encoder.URL, cfg.Encoder.Timeout)
		}
		if cfg.Roster.DatabaseURL != "" {
			fmt.Println("  Roster:           configured")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
