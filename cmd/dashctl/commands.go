package main

import (
	"context"
	"errors"

	"github.com/danmuck/dashlink/internal/dash"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/spf13/cobra"
)

// run dials, hands the session to fn and prints what it returns. Protocol
// failures still print their record before the error is returned.
func run(cmd *cobra.Command, o *options, fn func(ctx context.Context, s *dash.Session) (record, error)) error {
	if _, err := parseFormat(o.output); err != nil {
		return err
	}
	c, err := dial(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()
	rec, err := fn(ctx, c.session)
	if rec.Request != "" {
		if perr := printRecords(cmd.OutOrStdout(), o.output, []record{rec}); perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}

func getDataCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get-data <kind>",
		Short: "Read one datum from the companion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := protocol.ParseDataKind(args[0])
			if err != nil {
				return err
			}
			return run(cmd, o, func(ctx context.Context, s *dash.Session) (record, error) {
				r, err := s.GetData(ctx, kind)
				return dataRecord(r), err
			})
		},
	}
}

func setFeatureCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-feature <kind> <state>",
		Short: "Change a companion feature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := protocol.ParseFeatureKind(args[0])
			if err != nil {
				return err
			}
			state, err := protocol.ParseFeatureState(args[1])
			if err != nil {
				return err
			}
			return run(cmd, o, func(ctx context.Context, s *dash.Session) (record, error) {
				r, err := s.SetFeature(ctx, kind, state)
				return featureRecord(protocol.RequestSetFeature, r), err
			})
		},
	}
}

func getFeatureCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get-feature <kind>",
		Short: "Read a companion feature state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := protocol.ParseFeatureKind(args[0])
			if err != nil {
				return err
			}
			return run(cmd, o, func(ctx context.Context, s *dash.Session) (record, error) {
				r, err := s.GetFeature(ctx, kind)
				return featureRecord(protocol.RequestGetFeature, r), err
			})
		},
	}
}

func checkCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe whether the companion is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, func(ctx context.Context, s *dash.Session) (record, error) {
				code, err := s.Check(ctx)
				return record{Request: protocol.RequestIsAvailable.String(), Result: code.String()}, err
			})
		},
	}
}

func kindsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List data kinds, feature kinds and feature states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printRecords(cmd.OutOrStdout(), o.output, kindRecords())
		},
	}
}
