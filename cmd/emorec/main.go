// Command emorec records speech, sends it in short clips to an emotion
// recognition endpoint and shows a rolling view of the speaker's emotions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garlicgarrison/go-emotion-recorder/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "emorec: %v\n", err)
		if errors.Is(err, config.ErrMissingEndpoint) {
			fmt.Fprintln(os.Stderr, "emorec: set inference.endpoint in emorec.yaml or export HF_ENDPOINT")
			return 2
		}
		return 1
	}
	return 0
}
