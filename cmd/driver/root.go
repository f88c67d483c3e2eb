package main

import (
	"driver-dispatch-client/internal/config"
	"driver-dispatch-client/internal/platform/obs"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v          *viper.Viper
	configPath string
	cfg        config.Config
	log        hclog.InterceptLogger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "driver",
		Short:         "Simulated delivery driver that follows routes and reports its position",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newServeCmd(a), newRouteCmd(a), newMigrateCmd(a))
	return root
}

// init merges defaults, the config file, the environment (.env included) and
// flags, later sources winning, and builds the root logger.
func (a *app) init() error {
	envErr := godotenv.Load()

	if err := config.ReadFile(a.v, a.configPath); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = obs.NewLogger("driver", obs.LogOptions{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if envErr != nil {
		a.log.Debug("no .env file found, using environment variables")
	}

	config.WatchLogLevel(a.v, func(level string) {
		l := hclog.LevelFromString(level)
		if l == hclog.NoLevel {
			a.log.Warn("ignoring unknown log level from config", "log_level", level)
			return
		}
		a.log.SetLevel(l)
		a.log.Info("log level changed", "log_level", level)
	})

	return nil
}
