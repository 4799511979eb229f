package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/garlicgarrison/go-emotion-recorder/stream"
)

type sessionFlags struct {
	clipDuration time.Duration
	outputDir    string
	saveClips    bool
	skipSilent   bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.DurationVar(&f.clipDuration, "clip-duration", 0, "override segment.clip_duration")
	flags.StringVarP(&f.outputDir, "output", "o", "", "write a session report under this directory")
	flags.BoolVar(&f.saveClips, "save-clips", false, "keep every clip as a wav file in the report")
	flags.BoolVar(&f.skipSilent, "skip-silent", false, "do not send clips without speech")
}

func (f *sessionFlags) apply(cmd *cobra.Command, a *app) {
	flags := cmd.Flags()
	if flags.Changed("clip-duration") {
		a.cfg.Segment.ClipDuration = f.clipDuration
	}
	if flags.Changed("output") {
		a.cfg.Report.OutputDir = f.outputDir
	}
	if flags.Changed("save-clips") {
		a.cfg.Report.SaveClips = f.saveClips
	}
	if flags.Changed("skip-silent") {
		a.cfg.Session.SkipSilent = f.skipSilent
	}
}

func newRecordCmd(a *app) *cobra.Command {
	sf := &sessionFlags{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the default microphone until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, a)
			mic := stream.NewMicrophone(a.cfg.Capture.Stream())
			return a.record(cmd.Context(), mic, "microphone", true)
		},
	}
	sf.register(cmd)
	return cmd
}
