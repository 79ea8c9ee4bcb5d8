package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/pyroassist/go/internal/execution"
	"github.com/mcdev12/pyroassist/go/internal/notify"
	"github.com/mcdev12/pyroassist/go/internal/sheet"
	"github.com/mcdev12/pyroassist/go/internal/timeline"
)

func newRunCmd(load configLoader) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a firing sheet in the terminal",
		Long: "Run a firing sheet in the terminal. Enter starts or pauses, r resets and q quits.\n" +
			"The sheet comes from --file when given, otherwise from the configured store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runTerminal(ctx, cfg, file, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML sheet document to run instead of the stored sheet")
	return cmd
}

func runSource(ctx context.Context, cfg *Config, file string) (execution.Source, func(), error) {
	if file != "" {
		snapshot, err := sheet.ReadDocument(file)
		if err != nil {
			return nil, nil, err
		}
		return snapshot, func() {}, nil
	}

	repo, database, err := setupRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if database != nil {
			database.Close()
		}
	}
	return sheet.NewApp(repo), cleanup, nil
}

func runTerminal(ctx context.Context, cfg *Config, file string, in io.Reader, out io.Writer) error {
	src, cleanup, err := runSource(ctx, cfg, file)
	if err != nil {
		return err
	}
	defer cleanup()

	lines, settings, err := src.Sequence(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sheet: %w", err)
	}
	if len(lines) == 0 {
		return errors.New("sheet has no lines")
	}
	schedule := timeline.Adjust(lines, settings)

	term := newTerminal(out, barTotal(schedule))
	sinks := notify.Fanout{term}
	if cfg.NATS.Enabled {
		natsSink, err := notify.NewNATSSink(jetStreamConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to set up NATS: %w", err)
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
	}

	runner := execution.NewRunner(ctx,
		execution.WithSink(sinks),
		execution.WithCountdown(*cfg.Execution.Countdown),
		execution.WithTickInterval(cfg.Execution.TickInterval),
	)
	defer term.Wait()
	defer runner.Close()

	if _, err := runner.Load(ctx, lines, settings); err != nil {
		return err
	}
	log.Info().
		Int("lines", len(schedule)).
		Bool("compensate_delay", settings.CompensateDelay).
		Msg("sheet loaded; Enter starts or pauses, r resets, q quits")

	return operate(ctx, runner, in)
}

// operator is the part of the runner the keyboard drives.
type operator interface {
	Toggle(ctx context.Context) (execution.View, error)
	Reset(ctx context.Context) (execution.View, error)
}

// operate maps input lines to runner commands until q, end of input or ctx
// is done.
func operate(ctx context.Context, runner operator, in io.Reader) error {
	input := make(chan string)
	go func() {
		defer close(input)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case input <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			var err error
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
				_, err = runner.Toggle(ctx)
			case "r":
				_, err = runner.Reset(ctx)
			case "q":
				return nil
			default:
				log.Warn().Str("input", line).Msg("unknown key; Enter, r or q")
			}
			if err != nil {
				if errors.Is(err, execution.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}
