package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jupiterlabs/reengage/internal/classify"
)

// classifyCmd is a debugging aid: run the deterministic language and intent
// classifier on a message without touching the model backend.
var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Classify a message's language and intent (no model call)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			return errors.New("message is empty")
		}

		res := classify.Classify(text)
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
