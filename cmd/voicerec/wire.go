package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/MrWong99/voicerec/internal/config"
	"github.com/MrWong99/voicerec/internal/handoff"
	"github.com/MrWong99/voicerec/internal/health"
	"github.com/MrWong99/voicerec/internal/observe"
	"github.com/MrWong99/voicerec/internal/pipeline"
	"github.com/MrWong99/voicerec/internal/resilience"
	"github.com/MrWong99/voicerec/pkg/capture"
	"github.com/MrWong99/voicerec/pkg/capture/portaudio"
	"github.com/MrWong99/voicerec/pkg/capture/wsdevice"
	"github.com/MrWong99/voicerec/pkg/codec"
	"github.com/MrWong99/voicerec/pkg/codec/lame"
	"github.com/MrWong99/voicerec/pkg/codec/opus"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg      *config.Config
	metrics  *observe.Metrics
	provider *observe.Provider // nil without a telemetry listener
	loader   *codec.Loader
	breakers map[string]*resilience.CircuitBreaker
	target   handoff.Handoff
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Telemetry.ListenAddr != "" {
		p, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
		})
		if err != nil {
			return nil, err
		}
		a.provider = p
	}
	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, err
	}
	a.metrics = m

	a.loader, a.breakers, err = newLoader(cfg.Codec, m)
	if err != nil {
		return nil, err
	}
	a.target, err = newHandoff(ctx, cfg.Handoff)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.provider == nil {
		return
	}
	if err := a.provider.Shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown incomplete", "err", err)
	}
}

func (a *app) policy(e config.EncodingConfig) pipeline.Policy {
	return pipeline.Policy{
		Preferred:   string(e.Preferred),
		Codecs:      a.loader,
		BitrateKbps: e.BitrateKbps,
		BaseName:    e.BaseName,
	}
}

// newLoader builds the codec loader with one circuit breaker per source.
// An empty source list yields a loader that never has a codec.
func newLoader(cfg config.CodecConfig, m *observe.Metrics) (*codec.Loader, map[string]*resilience.CircuitBreaker, error) {
	env := codec.Env{
		CacheDir:   cfg.CacheDir,
		BinaryName: cfg.BinaryName,
		FromBinary: lame.FromBinary,
		Builtins:   map[string]codec.Codec{"opus": opus.New()},
		Endpoints: codec.Endpoints{
			S3:    cfg.Endpoints.S3,
			GCS:   cfg.Endpoints.GCS,
			Azure: cfg.Endpoints.Azure,
		},
	}
	sources, err := codec.ParseSources(cfg.Sources, env)
	if err != nil && !errors.Is(err, codec.ErrNoSources) {
		return nil, nil, err
	}

	breakers := make(map[string]*resilience.CircuitBreaker, len(sources))
	l := codec.NewLoader(sources,
		codec.WithGuards(func(source string) codec.Guard {
			cb := resilience.New(resilience.Config{
				Name:        source,
				MaxFailures: cfg.Breaker.MaxFailures,
				Cooldown:    cfg.Breaker.Cooldown,
			})
			breakers[source] = cb
			return cb
		}),
		codec.WithObserver(func(source string, err error) {
			m.RecordCodecLoad(context.Background(), source, err)
			if err != nil {
				slog.Debug("codec source failed", "source", source, "err", err)
			}
		}),
	)
	return l, breakers, nil
}

func newDevice(c config.CaptureConfig) capture.Device {
	switch c.Device {
	case config.DeviceWebSocket:
		h := http.Header{}
		for k, v := range c.Headers {
			h.Set(k, v)
		}
		return wsdevice.New(c.URL, wsdevice.WithHeader(h))
	default:
		return portaudio.New()
	}
}

func newHandoff(ctx context.Context, c config.HandoffConfig) (handoff.Handoff, error) {
	switch c.Type {
	case config.HandoffHTTP:
		client := &http.Client{Timeout: c.HTTP.Timeout}
		return handoff.NewHTTP(c.HTTP.URL,
			handoff.WithField(c.HTTP.Field),
			handoff.WithHeaders(c.HTTP.Headers),
			handoff.WithHTTPClient(client),
		), nil
	case config.HandoffS3:
		return handoff.NewS3(ctx, handoff.S3Config{
			Bucket:   c.S3.Bucket,
			Prefix:   c.S3.Prefix,
			Region:   c.S3.Region,
			Endpoint: c.S3.Endpoint,

			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
		})
	case config.HandoffDiscord:
		return handoff.NewDiscord(c.Discord.Token, c.Discord.ChannelID, c.Discord.Content)
	case config.HandoffDir, "":
		var opts []handoff.DirOption
		if c.Dir.Overwrite {
			opts = append(opts, handoff.WithOverwrite())
		}
		return handoff.NewDir(c.Dir.Path, opts...), nil
	default:
		return nil, fmt.Errorf("unknown handoff type %q", c.Type)
	}
}

// healthHandler reports the codec as an optional check: without it
// recordings still succeed as WAV.
func (a *app) healthHandler(state func() capture.State, policy func() pipeline.Policy) *health.Handler {
	codecCheck := health.Checker{
		Name:     "codec",
		Optional: true,
		Check: func(context.Context) error {
			if _, ok := a.loader.Current(); !ok {
				return codec.ErrUnavailable
			}
			return nil
		},
	}
	return health.New(func(context.Context) any {
		return a.status(state(), policy())
	}, codecCheck)
}

type statusSnapshot struct {
	State       string            `json:"state"`
	Preferred   string            `json:"preferred"`
	CodecSource string            `json:"codec_source,omitempty"`
	Handoff     string            `json:"handoff"`
	Breakers    map[string]string `json:"breakers,omitempty"`
}

func (a *app) status(state capture.State, p pipeline.Policy) statusSnapshot {
	s := statusSnapshot{
		State:       state.String(),
		Preferred:   p.Preferred,
		CodecSource: a.loader.Source(),
		Handoff:     a.target.Name(),
		Breakers:    make(map[string]string, len(a.breakers)),
	}
	names := make([]string, 0, len(a.breakers))
	for name := range a.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.Breakers[name] = a.breakers[name].State().String()
	}
	return s
}

// serveTelemetry runs the health and metrics listener until ctx is done.
func (a *app) serveTelemetry(ctx context.Context, h *health.Handler) error {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", a.provider.MetricsHandler())

	srv := &http.Server{
		Addr:              a.cfg.Telemetry.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("telemetry listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
