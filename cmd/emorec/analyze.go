package main

import (
	"github.com/spf13/cobra"

	"github.com/garlicgarrison/go-emotion-recorder/stream"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	sf := &sessionFlags{}
	var realtime bool

	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Segment and analyze a recorded wav file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, a)
			src := stream.NewFileSource(args[0], a.cfg.Capture.FramesPerBuffer, realtime)
			return a.record(cmd.Context(), src, args[0], realtime)
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&realtime, "realtime", false, "replay the file at its natural speed")
	return cmd
}
