// Package config provides the configuration schema and loader for voicerec.
package config

import (
	"time"

	"github.com/MrWong99/voicerec/pkg/capture"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DeviceKind selects the capture device implementation.
type DeviceKind string

const (
	// DevicePortAudio records from the host's default input via PortAudio.
	DevicePortAudio DeviceKind = "portaudio"

	// DeviceWebSocket receives float32 blocks from a remote peer.
	DeviceWebSocket DeviceKind = "websocket"
)

// IsValid reports whether d is a recognised device kind.
func (d DeviceKind) IsValid() bool {
	switch d {
	case DevicePortAudio, DeviceWebSocket:
		return true
	}
	return false
}

// Format names the preferred output encoding.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatOpus Format = "opus"
	FormatWAV  Format = "wav"
)

// IsValid reports whether f is a recognised format.
func (f Format) IsValid() bool {
	switch f {
	case FormatMP3, FormatOpus, FormatWAV:
		return true
	}
	return false
}

// Compressed reports whether f needs a codec.
func (f Format) Compressed() bool {
	return f == FormatMP3 || f == FormatOpus
}

// HandoffType selects where finished recordings are delivered.
type HandoffType string

const (
	HandoffDir     HandoffType = "dir"
	HandoffHTTP    HandoffType = "http"
	HandoffS3      HandoffType = "s3"
	HandoffDiscord HandoffType = "discord"
)

// IsValid reports whether h is a recognised handoff type.
func (h HandoffType) IsValid() bool {
	switch h {
	case HandoffDir, HandoffHTTP, HandoffS3, HandoffDiscord:
		return true
	}
	return false
}

// Config is the root configuration.
type Config struct {
	LogLevel  LogLevel        `yaml:"log_level"`
	Capture   CaptureConfig   `yaml:"capture"`
	Encoding  EncodingConfig  `yaml:"encoding"`
	Codec     CodecConfig     `yaml:"codec"`
	Handoff   HandoffConfig   `yaml:"handoff"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CaptureConfig configures the input device.
type CaptureConfig struct {
	Device DeviceKind `yaml:"device"`

	// URL and Headers are used by the websocket device only.
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`

	BlockSize int `yaml:"block_size"`

	// Voice processing requests. Unset means enabled.
	EchoCancellation *bool `yaml:"echo_cancellation"`
	NoiseSuppression *bool `yaml:"noise_suppression"`
	AutoGainControl  *bool `yaml:"auto_gain_control"`

	// TickInterval controls how often the elapsed display refreshes.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// Constraints converts c into the stream request sent to the device.
func (c CaptureConfig) Constraints() capture.Constraints {
	out := capture.DefaultConstraints()
	if c.BlockSize > 0 {
		out.BlockSize = c.BlockSize
	}
	if c.EchoCancellation != nil {
		out.EchoCancellation = *c.EchoCancellation
	}
	if c.NoiseSuppression != nil {
		out.NoiseSuppression = *c.NoiseSuppression
	}
	if c.AutoGainControl != nil {
		out.AutoGainControl = *c.AutoGainControl
	}
	return out
}

// EncodingConfig configures the artifact produced at stop.
type EncodingConfig struct {
	Preferred   Format `yaml:"preferred"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
	BaseName    string `yaml:"base_name"`
}

// CodecConfig configures how the compressed codec is located.
type CodecConfig struct {
	// Sources are tried in order until one yields a codec. See
	// codec.ParseSource for the accepted URI schemes.
	Sources    []string        `yaml:"sources"`
	CacheDir   string          `yaml:"cache_dir"`
	BinaryName string          `yaml:"binary_name"`
	Endpoints  EndpointsConfig `yaml:"endpoints"`
	Breaker    BreakerConfig   `yaml:"breaker"`
}

// EndpointsConfig points the s3://, gs:// and az:// sources at compatible
// services such as MinIO, fake-gcs-server or Azurite.
type EndpointsConfig struct {
	S3    string `yaml:"s3"`
	GCS   string `yaml:"gcs"`
	Azure string `yaml:"azure"`
}

// BreakerConfig bounds repeated attempts against a failing codec source.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// HandoffConfig selects and configures the upload target.
type HandoffConfig struct {
	Type    HandoffType          `yaml:"type"`
	Dir     DirHandoffConfig     `yaml:"dir"`
	HTTP    HTTPHandoffConfig    `yaml:"http"`
	S3      S3HandoffConfig      `yaml:"s3"`
	Discord DiscordHandoffConfig `yaml:"discord"`
}

// DirHandoffConfig writes artifacts to a local directory.
type DirHandoffConfig struct {
	Path      string `yaml:"path"`
	Overwrite bool   `yaml:"overwrite"`
}

// HTTPHandoffConfig posts artifacts as multipart form uploads.
type HTTPHandoffConfig struct {
	URL     string            `yaml:"url"`
	Field   string            `yaml:"field"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// S3HandoffConfig uploads artifacts to an S3-compatible bucket.
type S3HandoffConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey are expanded from the environment.
	// Leave both empty to use the default AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DiscordHandoffConfig posts artifacts as channel attachments.
type DiscordHandoffConfig struct {
	// Token is the bot token. "${VAR}" references are expanded from the
	// environment at load time.
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
	Content   string `yaml:"content"`
}

// TelemetryConfig configures the optional health and metrics listener.
type TelemetryConfig struct {
	// ListenAddr enables /healthz, /readyz and /metrics when non-empty.
	ListenAddr  string `yaml:"listen_addr"`
	ServiceName string `yaml:"service_name"`
}
