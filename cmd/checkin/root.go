package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bailbond/checkin-service/internal/apiclient"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	profilePath string
	baseURL     string
	token       string
	clientID    int64
	timeout     time.Duration
	verbose     bool

	profile Profile
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "checkin",
		Short:         "Compliance check-ins for clients on bond",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.profilePath, "profile", defaultProfilePath(), "Profile file (YAML)")
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides profile)")
	flags.StringVar(&opts.token, "token", "", "Session token (overrides profile, or set CHECKIN_SESSION_TOKEN)")
	flags.Int64Var(&opts.clientID, "client-id", 0, "Client id (overrides profile)")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall operation timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newSubmitCmd(opts))
	return root
}

func (o *options) init(cmd *cobra.Command) error {
	level := zapcore.WarnLevel
	if o.verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	o.logger = logger

	profile, err := LoadProfile(o.profilePath)
	if err != nil {
		return err
	}
	if o.baseURL != "" {
		profile.BaseURL = o.baseURL
	}
	if o.token != "" {
		profile.SessionToken = o.token
	} else if env := os.Getenv("CHECKIN_SESSION_TOKEN"); env != "" && profile.SessionToken == "" {
		profile.SessionToken = env
	}
	if o.clientID != 0 {
		profile.ClientID = o.clientID
	}
	o.profile = profile
	return nil
}

func (o *options) client() (*apiclient.Client, error) {
	if o.profile.BaseURL == "" {
		return nil, errors.New("base URL is required: set base_url in the profile or pass --base-url")
	}
	return apiclient.New(apiclient.Config{
		BaseURL:      o.profile.BaseURL,
		SessionToken: o.profile.SessionToken,
	})
}

func (o *options) requireClientID() (int64, error) {
	if o.profile.ClientID <= 0 {
		return 0, errors.New("client id is required: set client_id in the profile or pass --client-id")
	}
	return o.profile.ClientID, nil
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, o.timeout)
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "checkin.yaml"
	}
	return filepath.Join(dir, "checkin", "profile.yaml")
}
