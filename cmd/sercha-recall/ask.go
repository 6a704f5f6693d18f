package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.query.Query(ctx, domain.QueryRequest{
		Query:    strings.Join(args, " "),
		ClientID: "cli",
	})
	if err != nil {
		return fmt.Errorf("%s: %w", domain.CodeOf(err), err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
