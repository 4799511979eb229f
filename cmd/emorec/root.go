package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/garlicgarrison/go-emotion-recorder/config"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	envFiles   []string
	logLevel   string

	cfg       *config.Config
	log       *logrus.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "emorec",
		Short:         "Live speech emotion recognition from the microphone",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				_ = a.logCloser.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file (default ./emorec.yaml if present)")
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load (default ./.env)")
	flags.StringVar(&a.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newRecordCmd(a),
		newAnalyzeCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) load() error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.logCloser = closer
	return nil
}
