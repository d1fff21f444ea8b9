package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luthfi/sentuh/internal/config"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Load and validate the configuration",
	RunE:  runCheckConfig,
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "config ok: %s\n", loader.GetConfigPath())
	fmt.Fprintf(cmd.OutOrStdout(), "agent type: %s, models: %d\n", cfg.Agent.Type, len(cfg.Models))
	return nil
}
