package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/homewatch-io/homewatch/internal/config"
	"github.com/homewatch-io/homewatch/internal/engine"
	"github.com/homewatch-io/homewatch/internal/event"
)

var replayJSON bool

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Emit full results as JSON lines")
}

var replayCmd = &cobra.Command{
	Use:   "replay <requests.json>",
	Short: "Assess recorded event requests offline",
	Long: "Reads a JSON array of assessment requests from a file, runs each\n" +
		"through the engine built from the config, and prints the verdicts.\n" +
		"Useful for tuning rules and dampening factors against captures.",
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	loader, err := config.NewLoader(rootConfigPath, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var reqs []*event.Request
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if len(reqs) == 0 {
		return fmt.Errorf("%s: no requests", args[0])
	}

	eng, err := engine.New(loader.Config(), engine.Options{Log: slog.Default()})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	ctx := context.Background()
	eng.Start(ctx)
	defer eng.Shutdown()

	enc := json.NewEncoder(os.Stdout)
	for i, req := range reqs {
		if req.RequestID == "" {
			req.RequestID = fmt.Sprintf("replay-%d", i)
		}
		res, err := eng.Assess(ctx, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", req.RequestID, err)
			continue
		}
		if replayJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("%-24s %-10s score=%.3f  %s\n",
			res.RequestID, res.ThreatLevel, res.Score, res.Reasoning)
	}
	return nil
}
