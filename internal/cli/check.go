package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homewatch-io/homewatch/internal/config"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the engine config and exit",
	Long: "Parses and validates the YAML config without starting the engine.\n" +
		"Exit code 0 if the config is valid, 1 otherwise.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	loader, err := config.NewLoader(rootConfigPath, nil)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	fmt.Printf("%s: ok (version %s, %d zones, %d rules, %d extensions)\n",
		rootConfigPath, cfg.Version, len(cfg.Zones), len(cfg.Rules), len(cfg.Extensions))
	return nil
}
