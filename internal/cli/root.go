package cli

import (
	"context"

	"github.com/jrsteele09/tramcan-session/internal/app"
	"github.com/jrsteele09/tramcan-session/internal/config"
	"github.com/jrsteele09/tramcan-session/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cliConfig lets flags override the environment.
type cliConfig struct {
	config.Config
	baseURL string
}

func (c cliConfig) GetBaseURL() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return c.Config.GetBaseURL()
}

// session is the state shared by every subcommand of one invocation.
type session struct {
	cfg       config.Config
	server    string
	logLevel  string
	logFormat string
	options   []app.Option

	logger zerolog.Logger
	app    *app.App
}

// NewRootCmd creates the tramcan CLI. options are passed to app.New and let
// tests inject a store or transport.
func NewRootCmd(cfg config.Config, options ...app.Option) *cobra.Command {
	s := &session{cfg: cfg, options: options}

	root := &cobra.Command{
		Use:   "tramcan",
		Short: "Tram can session client",
		Long:  "tramcan signs in to a weighing-station backend and keeps the tenant, station and staff sessions on this device.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return s.close()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&s.server, "server", "", "backend base URL (or BASE_URL env)")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", cfg.GetLogLevel(), "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&s.logFormat, "log-format", logging.FormatFor(cfg.GetEnv()), "log format (console, json)")

	root.AddCommand(
		newTenantLoginCmd(s),
		newStationsCmd(s),
		newSelectCmd(s),
		newSwitchCmd(s),
		newCheckStationCmd(s),
		newStaffLoginCmd(s),
		newLoginCmd(s),
		newLogoutGenericCmd(s),
		newValidateCmd(s),
		newLogoutCmd(s),
		newStatusCmd(s),
	)
	return root
}

func (s *session) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.logger = logging.NewLogger(logging.ParseLevel(s.logLevel), s.logFormat)
	options := append([]app.Option{app.WithLogger(s.logger)}, s.options...)
	a, err := app.New(ctx, cliConfig{Config: s.cfg, baseURL: s.server}, options...)
	if err != nil {
		return err
	}
	s.app = a
	return nil
}

func (s *session) close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}
