package main

import (
	"fmt"

	"github.com/SOA2017-ILV/CityDashboardAPI/internal/app"
	"github.com/SOA2017-ILV/CityDashboardAPI/internal/config"
	"github.com/SOA2017-ILV/CityDashboardAPI/internal/logger"
	"github.com/SOA2017-ILV/CityDashboardAPI/pkg/yelp"
	"github.com/spf13/cobra"
)

// session holds what PersistentPreRunE builds for the subcommands.
type session struct {
	log       *logger.ZapLogger
	dashboard *app.Dashboard
}

func (s *session) open() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	s.log = log

	dash, err := app.NewDashboard(cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize dashboard", "error", err)
		return err
	}
	s.dashboard = dash
	return nil
}

func (s *session) close() error {
	if s.log == nil {
		return nil
	}
	// Sync on stdout returns EINVAL on some platforms; the entries are already written.
	_ = s.log.Close()
	return nil
}

func newRootCmd() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:   "citydashboard",
		Short: "Query the Yelp Fusion API",
		Long: `citydashboard looks up businesses through the Yelp Fusion API.

Without a subcommand it runs a demo: a search for "dinner" in
"San Francisco, CA" followed by a lookup of "yelp-san-francisco".

The token is read from YELP_TOKEN or from yelp_token in config/secrets.yml.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return s.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.dashboard.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	root.AddCommand(newSearchCmd(s), newBusinessCmd(s))
	return root
}

func newSearchCmd(s *session) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search TERM LOCATION",
		Short: "Search businesses by term and location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be a positive integer, got %d", limit)
			}
			q := yelp.SearchQuery{Term: args[0], Location: args[1], Limit: limit}
			return s.dashboard.PrintSearch(cmd.Context(), cmd.OutOrStdout(), q)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", yelp.DefaultSearchLimit, "maximum number of businesses to return (must be positive)")
	return cmd
}

func newBusinessCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "business ID",
		Short: "Look up a single business by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.dashboard.PrintBusiness(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}
