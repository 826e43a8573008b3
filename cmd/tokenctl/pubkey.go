package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/banking-auth/internal/keystore"
)

func newPubkeyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Print the issuer's base64 encoded ML-DSA-65 public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := opts.resolver()
			if err != nil {
				return err
			}
			key, err := resolver.VerificationKey(cmd.Context())
			if err != nil {
				return err
			}
			encoded, err := keystore.EncodeSignaturePublicKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
}
