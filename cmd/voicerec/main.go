// Command voicerec records microphone audio, encodes it to MP3, Opus or WAV
// and hands the file to a configured upload target.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicerec/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voicerec:", err)
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string

	// level is adjusted on config reload.
	level *slog.LevelVar
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:           "voicerec",
		Short:         "Record, encode and upload voice memos",
		Long:          "voicerec captures mono microphone audio, encodes it to a compressed format when a codec is available (WAV otherwise) and delivers the file to a directory, HTTP endpoint, S3 bucket or Discord channel.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "voicerec.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newRecordCmd(f),
		newEncodeCmd(f),
		newCodecCmd(f),
	)
	return root
}

// load reads the config file, falling back to defaults when the default path
// does not exist, and installs the logger. exists reports whether a file was
// read.
func (f *rootFlags) load(cmd *cobra.Command) (cfg *config.Config, exists bool, err error) {
	if _, statErr := os.Stat(f.configPath); statErr == nil {
		cfg, err = config.Load(f.configPath)
		exists = true
	} else if cmd.Flags().Changed("config") {
		return nil, false, fmt.Errorf("config file %q: %w", f.configPath, statErr)
	} else {
		cfg, err = config.LoadFromReader(strings.NewReader(""))
	}
	if err != nil {
		return nil, false, err
	}

	if f.logLevel != "" {
		lvl := config.LogLevel(f.logLevel)
		if !lvl.IsValid() {
			return nil, false, fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", f.logLevel)
		}
		cfg.LogLevel = lvl
	}
	f.installLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return cfg, exists, nil
}

func (f *rootFlags) installLogger(w io.Writer, level config.LogLevel) {
	f.level.Set(slogLevel(level))
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: f.level})))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
