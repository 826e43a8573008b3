package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/banking-auth/internal/config"
	"github.com/spec-kit/banking-auth/internal/keyresolver"
)

type globalOptions struct {
	issuer  string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "tokenctl",
		Short:         "Inspect and verify banking bearer tokens",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.issuer, "issuer", "",
		"Base URL of the issuing auth service (default is $AUTH_SERVICE_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Key fetch timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log key fetches to stderr")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newVerifyCmd(opts))
	root.AddCommand(newPubkeyCmd(opts))
	return root
}

// resolver builds a key resolver for the selected issuer. Flags win over the environment.
func (o *globalOptions) resolver() (*keyresolver.Resolver, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	issuer := cfg.Issuer
	if o.issuer != "" {
		issuer.AuthServiceURL = o.issuer
	}
	issuer.KeyFetchTimeoutSeconds = int(o.timeout / time.Second)
	if issuer.KeyFetchTimeoutSeconds <= 0 {
		issuer.KeyFetchTimeoutSeconds = 1
	}

	logger := zap.NewNop()
	if o.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	return keyresolver.New(issuer, logger), nil
}
