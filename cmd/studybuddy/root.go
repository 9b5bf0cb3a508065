package main

import (
	"encoding/json"
	"io"
	"os"

	"studybuddy/internal/apiclient"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v       *viper.Viper
	cfg     cliConfig
	client  *apiclient.Client
	logger  zerolog.Logger
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "studybuddy",
		Short:         "Check plan limits, request upgrades and listen to answers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := zerolog.WarnLevel
			if a.verbose {
				level = zerolog.DebugLevel
			}
			a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
				Level(level).With().Timestamp().Logger()

			if err := bindFlags(a.v, cmd.Flags()); err != nil {
				return err
			}
			if err := readConfigFile(a.v, configPath); err != nil {
				return err
			}
			cfg, err := loadConfig(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.client = apiclient.New(cfg.APIURL, cfg.Token, cfg.Timeout, a.logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.studybuddy.yaml)")
	pf.String("api-url", "", "API base URL")
	pf.String("token", "", "Student bearer token")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		newSubscriptionCmd(a),
		newUsageCmd(a),
		newUpgradeCmd(a),
		newSpeakCmd(a),
		newVoicesCmd(),
	)
	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
