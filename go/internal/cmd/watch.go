package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/pyroassist/go/internal/execution"
	"github.com/mcdev12/pyroassist/go/internal/notify"
)

func newWatchCmd(load configLoader) *cobra.Command {
	var consumer string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a run published to NATS JetStream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			wc := notify.DefaultWatcherConfig()
			wc.URL = cfg.NATS.URL
			wc.StreamName = cfg.NATS.Stream
			wc.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"
			if consumer != "" {
				wc.ConsumerName = consumer
			}

			watcher, err := notify.NewWatcher(wc)
			if err != nil {
				return err
			}
			defer watcher.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watcher.Run(ctx, printEvent(os.Stdout))
		},
	}
	cmd.Flags().StringVar(&consumer, "consumer", "", "durable consumer name")
	return cmd
}

// printEvent writes one line per alert and per phase change to out.
func printEvent(out io.Writer) notify.Handler {
	return func(_ context.Context, env notify.Envelope) error {
		switch env.EventType {
		case "alert":
			n, err := notify.DecodeAlert(env)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\a%s FIRE line %d\n", execution.FormatClock(n.Elapsed), n.LineNumber)
		case "phase":
			v, err := notify.DecodeView(env)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", v.ElapsedLabel, v.Phase)
		default:
			log.Debug().Str("event_type", env.EventType).Msg("ignoring event")
		}
		return nil
	}
}
