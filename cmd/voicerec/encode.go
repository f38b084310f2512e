package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicerec/internal/pipeline"
	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/capture"
)

func newEncodeCmd(f *rootFlags) *cobra.Command {
	var (
		in   string
		rate int
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode raw float32 samples and deliver them like a recording",
		Long: "Reads mono little-endian float32 samples from --in (- for stdin) and runs " +
			"them through the same encode and handoff path as a stopped recording.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rate <= 0 {
				return fmt.Errorf("--rate must be positive, got %d", rate)
			}
			cfg, _, err := f.load(cmd)
			if err != nil {
				return err
			}
			samples, err := readSamples(in, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			if cfg.Encoding.Preferred.Compressed() {
				a.loader.Load(ctx)
			}

			rec := &fileRecorder{samples: samples, rate: rate}
			ctrl := pipeline.NewController(rec, a.policy(cfg.Encoding), a.target,
				pipeline.WithMetrics(a.metrics),
			)
			if err := ctrl.Start(ctx); err != nil {
				return err
			}
			res, err := ctrl.Stop(ctx)
			report(cmd.OutOrStdout(), res, err)
			return err
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "input file of raw float32 samples, - for stdin")
	cmd.Flags().IntVar(&rate, "rate", 0, "sample rate of the input in Hz")
	return cmd
}

func readSamples(path string, stdin io.Reader) ([]float32, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("read samples: %d bytes is not a whole number of float32 samples", len(b))
	}
	return audio.Float32sFromBytes(b), nil
}

// fileRecorder replays a fixed buffer as a single recording.
type fileRecorder struct {
	samples []float32
	rate    int
	state   capture.State
}

func (r *fileRecorder) Start(context.Context) error {
	if r.state != capture.StateIdle {
		return capture.ErrAlreadyRecording
	}
	r.state = capture.StateRecording
	return nil
}

func (r *fileRecorder) Stop(context.Context) (capture.Recording, error) {
	if r.state != capture.StateRecording {
		return capture.Recording{}, capture.ErrNotRecording
	}
	r.state = capture.StateIdle
	samples := r.samples
	if samples == nil {
		samples = []float32{}
	}
	return capture.Recording{
		Samples:    samples,
		SampleRate: r.rate,
		Blocks:     1,
		Elapsed:    time.Duration(len(samples)) * time.Second / time.Duration(r.rate),
	}, nil
}

func (r *fileRecorder) State() capture.State { return r.state }
