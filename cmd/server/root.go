package main

import (
	"os"
	"strings"

	"github.com/dkeye/Camlink/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:   "camlink",
		Short: "Phone-as-camera relay with hand and pose perception",
		Long: `camlink relays camera frames and WebRTC signaling between a phone and
desktop viewers, and publishes hand-gesture and body keypoints for every frame.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(v.GetString("mode"), v.GetString("log_level"))
		},
	}

	root.PersistentFlags().String("mode", "release", "gin mode: debug, test or release")
	root.PersistentFlags().String("log-level", "info", "zerolog level")
	bindFlag(v, root, "mode", "mode")
	bindFlag(v, root, "log_level", "log-level")

	serve := newServeCmd(v)
	root.AddCommand(serve, newMintCmd())
	// A bare `camlink` starts the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		log.Fatal().Err(err).Str("flag", flag).Msg("bind flag")
	}
}

// setupLogger configures the global zerolog logger. Console output is for
// humans; release mode logs JSON.
func setupLogger(mode, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if mode != "release" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
