package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicerec/internal/observe"
	"github.com/MrWong99/voicerec/pkg/codec"
)

var errNoCodec = errors.New("no codec source could be loaded")

func newCodecCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "codec",
		Short: "Load the configured codec sources and report which one answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := f.load(cmd)
			if err != nil {
				return err
			}
			l, _, err := newLoader(cfg.Codec, observe.DefaultMetrics())
			if err != nil {
				return err
			}
			if !l.Load(cmd.Context()) {
				return fmt.Errorf("%w: %w", errNoCodec, codec.ErrUnavailable)
			}
			c, _ := l.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", l.Source(), c.Name(), c.Format().ContentType)
			return nil
		},
	}
}
