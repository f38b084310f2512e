package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MrWong99/voicerec/pkg/capture"
	"github.com/MrWong99/voicerec/pkg/codec"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultBaseName        = "recording"
	DefaultBinaryName      = "lame"
	DefaultHTTPField       = "file"
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultTickInterval    = time.Second
	DefaultBreakerFails    = 3
	DefaultBreakerCooldown = time.Minute
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.Handoff.Discord.Token = os.ExpandEnv(cfg.Handoff.Discord.Token)
	cfg.Handoff.S3.AccessKeyID = os.ExpandEnv(cfg.Handoff.S3.AccessKeyID)
	cfg.Handoff.S3.SecretAccessKey = os.ExpandEnv(cfg.Handoff.S3.SecretAccessKey)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field that has a default. The codec source
// list defaults to match the preferred format: the lame binary on $PATH for
// mp3 and the in-process encoder for opus.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}

	if cfg.Capture.Device == "" {
		cfg.Capture.Device = DevicePortAudio
	}
	if cfg.Capture.BlockSize == 0 {
		cfg.Capture.BlockSize = capture.DefaultBlockSize
	}
	if cfg.Capture.TickInterval == 0 {
		cfg.Capture.TickInterval = DefaultTickInterval
	}

	if cfg.Encoding.Preferred == "" {
		cfg.Encoding.Preferred = FormatMP3
	}
	if cfg.Encoding.BitrateKbps == 0 {
		cfg.Encoding.BitrateKbps = codec.DefaultBitrateKbps
	}
	if cfg.Encoding.BaseName == "" {
		cfg.Encoding.BaseName = DefaultBaseName
	}

	if len(cfg.Codec.Sources) == 0 {
		switch cfg.Encoding.Preferred {
		case FormatMP3:
			cfg.Codec.Sources = []string{"path:" + DefaultBinaryName}
		case FormatOpus:
			cfg.Codec.Sources = []string{"builtin:opus"}
		}
	}
	if cfg.Codec.BinaryName == "" {
		cfg.Codec.BinaryName = DefaultBinaryName
	}
	if cfg.Codec.Breaker.MaxFailures == 0 {
		cfg.Codec.Breaker.MaxFailures = DefaultBreakerFails
	}
	if cfg.Codec.Breaker.Cooldown == 0 {
		cfg.Codec.Breaker.Cooldown = DefaultBreakerCooldown
	}

	if cfg.Handoff.Type == "" {
		cfg.Handoff.Type = HandoffDir
	}
	if cfg.Handoff.Dir.Path == "" {
		cfg.Handoff.Dir.Path = "."
	}
	if cfg.Handoff.HTTP.Field == "" {
		cfg.Handoff.HTTP.Field = DefaultHTTPField
	}
	if cfg.Handoff.HTTP.Timeout == 0 {
		cfg.Handoff.HTTP.Timeout = DefaultHTTPTimeout
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "voicerec"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Capture
	c := cfg.Capture
	if c.Device != "" && !c.Device.IsValid() {
		errs = append(errs, fmt.Errorf("capture.device %q is invalid; valid values: portaudio, websocket", c.Device))
	}
	if c.Device == DeviceWebSocket && c.URL == "" {
		errs = append(errs, errors.New("capture.url is required for the websocket device"))
	}
	if c.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("capture.block_size must be positive, got %d", c.BlockSize))
	}
	if c.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("capture.tick_interval must be positive, got %s", c.TickInterval))
	}

	// Encoding
	e := cfg.Encoding
	if e.Preferred != "" && !e.Preferred.IsValid() {
		errs = append(errs, fmt.Errorf("encoding.preferred %q is invalid; valid values: mp3, opus, wav", e.Preferred))
	}
	if e.BitrateKbps < 0 || e.BitrateKbps > 320 {
		errs = append(errs, fmt.Errorf("encoding.bitrate_kbps must be between 1 and 320, got %d", e.BitrateKbps))
	}
	if strings.ContainsAny(e.BaseName, `/\`) {
		errs = append(errs, fmt.Errorf("encoding.base_name %q must not contain path separators", e.BaseName))
	}

	// Codec
	if len(cfg.Codec.Sources) > 0 {
		if _, err := codec.ParseSources(cfg.Codec.Sources, codec.Env{}); err != nil {
			errs = append(errs, fmt.Errorf("codec.sources: %w", err))
		}
	} else if e.Preferred.Compressed() {
		slog.Warn("no codec sources configured; recordings will fall back to wav", "preferred", e.Preferred)
	}
	for _, ep := range []struct{ name, value string }{
		{"s3", cfg.Codec.Endpoints.S3},
		{"gcs", cfg.Codec.Endpoints.GCS},
		{"azure", cfg.Codec.Endpoints.Azure},
	} {
		if ep.value == "" {
			continue
		}
		if u, err := url.Parse(ep.value); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("codec.endpoints.%s %q must be an http(s) URL", ep.name, ep.value))
		}
	}
	if cfg.Codec.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("codec.breaker.max_failures must be positive, got %d", cfg.Codec.Breaker.MaxFailures))
	}

	// Handoff
	h := cfg.Handoff
	switch h.Type {
	case "":
	case HandoffDir:
	case HandoffHTTP:
		if h.HTTP.URL == "" {
			errs = append(errs, errors.New("handoff.http.url is required for the http handoff"))
		}
	case HandoffS3:
		if h.S3.Bucket == "" {
			errs = append(errs, errors.New("handoff.s3.bucket is required for the s3 handoff"))
		}
		if (h.S3.AccessKeyID == "") != (h.S3.SecretAccessKey == "") {
			errs = append(errs, errors.New("handoff.s3.access_key_id and handoff.s3.secret_access_key must be set together"))
		}
	case HandoffDiscord:
		if h.Discord.Token == "" {
			errs = append(errs, errors.New("handoff.discord.token is required for the discord handoff"))
		}
		if h.Discord.ChannelID == "" {
			errs = append(errs, errors.New("handoff.discord.channel_id is required for the discord handoff"))
		}
	default:
		errs = append(errs, fmt.Errorf("handoff.type %q is invalid; valid values: dir, http, s3, discord", h.Type))
	}

	return errors.Join(errs...)
}
