package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dashctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "dashctl",
		Short: "Talk to a Dash companion",
		Long: `dashctl runs single Dash API exchanges against a companion.

Each command opens a session, issues one request, waits for its single
completion and prints the result.

Examples:
  dashctl get-data battery_percent
  dashctl set-feature wifi off --app face
  dashctl get-feature ringer -o json
  dashctl check --loopback`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "client config toml")
	flags.StringVar(&opts.addr, "addr", "", "companion websocket url")
	flags.StringVar(&opts.natsURL, "nats", "", "nats url; selects the nats transport")
	flags.StringVar(&opts.app, "app", "", "app name sent in every request")
	flags.DurationVar(&opts.timeout, "timeout", 0, "reply timeout override")
	flags.BoolVar(&opts.loopback, "loopback", false, "answer from an in-process companion")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every outbound request")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table|json|yaml")

	root.AddCommand(
		getDataCmd(opts),
		setFeatureCmd(opts),
		getFeatureCmd(opts),
		checkCmd(opts),
		kindsCmd(opts),
	)
	return root
}
