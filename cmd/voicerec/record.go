package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicerec/internal/config"
	"github.com/MrWong99/voicerec/internal/pipeline"
	"github.com/MrWong99/voicerec/pkg/capture"
)

// finaliseTimeout bounds the encode and handoff of a recording interrupted
// by shutdown.
const finaliseTimeout = 30 * time.Second

func newRecordCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record interactively; press Enter to start and stop",
		Long: "Press Enter to start a recording and Enter again to stop it. Each stopped " +
			"recording is encoded and delivered. Type q or close stdin to quit; Ctrl+C " +
			"finalises any recording in progress before exiting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, exists, err := f.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRecord(ctx, f, cfg, exists, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runRecord(ctx context.Context, f *rootFlags, cfg *config.Config, watch bool, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	// The first stop usually finds the codec loaded.
	a.loader.LoadAsync(ctx)

	// The ticker goroutine and the loop share out.
	out = &lockedWriter{w: out}
	session := newSession(newDevice(cfg.Capture), cfg.Capture, out)
	ctrl := pipeline.NewController(session, a.policy(cfg.Encoding), a.target,
		pipeline.WithReloader(a.loader),
		pipeline.WithMetrics(a.metrics),
	)

	if watch {
		w, err := config.NewWatcher(f.configPath, func(_, next *config.Config, d config.ConfigDiff) {
			applyReload(f, a, ctrl, next, d)
		})
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.provider != nil {
		h := a.healthHandler(session.State, ctrl.Policy)
		g.Go(func() error { return a.serveTelemetry(gctx, h) })
	}
	g.Go(func() error {
		defer cancel()
		return recordLoop(gctx, ctrl, in, out)
	})

	return g.Wait()
}

// newSession builds the capture session whose elapsed ticks redraw the
// "● REC mm:ss" line on out.
func newSession(dev capture.Device, c config.CaptureConfig, out io.Writer) *capture.Session {
	return capture.NewSession(dev,
		capture.WithConstraints(c.Constraints()),
		capture.WithTickInterval(c.TickInterval),
		capture.WithTickHandler(func(elapsed time.Duration) {
			fmt.Fprintf(out, "\r● REC %s", capture.FormatElapsed(elapsed))
		}),
	)
}

// lockedWriter serialises writes from concurrent goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// applyReload swaps what can change while running and warns about the rest.
func applyReload(f *rootFlags, a *app, ctrl *pipeline.Controller, next *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && f.logLevel == "" {
		f.level.Set(slogLevel(d.NewLogLevel))
	}
	if d.EncodingChanged {
		ctrl.SetPolicy(a.policy(d.NewEncoding))
		slog.Info("encoding policy updated", "preferred", next.Encoding.Preferred, "bitrate_kbps", next.Encoding.BitrateKbps)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "sections", d.RestartRequired)
	}
}

// recordLoop toggles the controller on every input line until input ends,
// a "q" line arrives or ctx is cancelled. A recording in progress is always
// finalised before returning.
func recordLoop(ctx context.Context, ctrl *pipeline.Controller, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, "Press Enter to start recording, Enter again to stop, q to quit.")
	for {
		select {
		case <-ctx.Done():
			return finalise(ctx, ctrl, out)
		case line, ok := <-lines:
			if !ok || line == "q" {
				return finalise(ctx, ctrl, out)
			}
			started, res, err := ctrl.Toggle(ctx)
			switch {
			case started && err != nil:
				if errors.Is(err, capture.ErrDeviceUnavailable) {
					fmt.Fprintln(out, "Microphone unavailable:", err)
					continue
				}
				return err
			case started:
				fmt.Fprintln(out, "● REC 00:00")
			default:
				report(out, res, err)
			}
		}
	}
}

func finalise(ctx context.Context, ctrl *pipeline.Controller, out io.Writer) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finaliseTimeout)
	defer cancel()
	res, stopped, err := ctrl.Close(fctx)
	if stopped {
		report(out, res, err)
	}
	return err
}

func report(out io.Writer, res pipeline.Outcome, err error) {
	fmt.Fprintln(out)
	if err != nil {
		fmt.Fprintf(out, "Recording %s could not be delivered: %v\n", res.Artifact.Name, err)
		return
	}
	fmt.Fprintf(out, "Saved %s (%d bytes, %s)\n", res.Artifact.Name, res.Artifact.Size(), res.Kind)
}
