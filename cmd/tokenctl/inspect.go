package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/banking-auth/internal/token"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a token's header and payload without verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, payload, err := token.Inspect(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", token.Kind(err), err)
			}

			out := map[string]any{
				"header":  header,
				"payload": payload,
			}
			if payload.Exp != nil {
				exp := time.Unix(*payload.Exp, 0).UTC()
				out["expiresAt"] = exp.Format(time.RFC3339)
				out["expired"] = time.Now().After(exp)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
