// Package pipeline turns finished recordings into artifacts and hands them
// off. [Encode] picks the compressed codec when one is available at that
// moment and falls back to WAV otherwise; [Controller] drives a capture
// session through start, stop, encode and delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voicerec/internal/observe"
	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/codec"
)

// FormatWAV selects the lossless container directly, skipping any codec.
const FormatWAV = "wav"

// DefaultBaseName is the artifact name stem used when none is configured.
const DefaultBaseName = "recording"

// OutcomeKind tells which encoding path produced an artifact.
type OutcomeKind int

const (
	// KindCompressed means a codec encoded the recording.
	KindCompressed OutcomeKind = iota + 1

	// KindLosslessFallback means the recording was wrapped as WAV.
	KindLosslessFallback
)

// String returns the label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case KindCompressed:
		return "compressed"
	case KindLosslessFallback:
		return "lossless_fallback"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// CodecProvider reports the codec available right now, if any.
// [*codec.Loader] satisfies it.
type CodecProvider interface {
	Current() (codec.Codec, bool)
}

// Policy controls how [Encode] chooses the output.
type Policy struct {
	// Preferred is the configured format name. [FormatWAV] always produces
	// WAV; any other value uses the codec from Codecs when one is loaded.
	Preferred string

	// Codecs is consulted at every encode. Nil means no codec.
	Codecs CodecProvider

	// BitrateKbps is passed to the codec. Zero means
	// [codec.DefaultBitrateKbps].
	BitrateKbps int

	// BaseName is the artifact name without extension. Empty means
	// [DefaultBaseName].
	BaseName string
}

func (p Policy) baseName() string {
	if p.BaseName == "" {
		return DefaultBaseName
	}
	return p.BaseName
}

// Outcome is the result of [Encode].
type Outcome struct {
	Kind     OutcomeKind
	Artifact audio.Artifact

	// Codec names what produced Artifact: the codec name, or "wav".
	Codec string

	// Reason explains a fallback away from a preferred compressed format.
	// It wraps [codec.ErrUnavailable] when no codec was loaded. Nil for
	// compressed outcomes and when WAV was preferred.
	Reason error
}

// Encode converts samples to PCM and encodes them according to p. It never
// fails: any problem on the compressed path results in a WAV artifact with
// Reason set.
func Encode(ctx context.Context, samples []float32, sampleRate int, p Policy) Outcome {
	pcm := audio.ToPCM16(samples)
	log := observe.Logger(ctx)

	if p.Preferred != FormatWAV {
		out, err := encodeCompressed(ctx, pcm, sampleRate, p)
		if err == nil {
			return out
		}
		if errors.Is(err, codec.ErrUnavailable) {
			log.Debug("no codec loaded; saving as wav", "preferred", p.Preferred)
		} else {
			log.Warn("compressed encoding failed; saving as wav", "preferred", p.Preferred, "reason", err)
		}
		return wavOutcome(pcm, sampleRate, p, err)
	}
	return wavOutcome(pcm, sampleRate, p, nil)
}

func encodeCompressed(ctx context.Context, pcm []int16, sampleRate int, p Policy) (Outcome, error) {
	if p.Codecs == nil {
		return Outcome{}, codec.ErrUnavailable
	}
	c, ok := p.Codecs.Current()
	if !ok || c == nil {
		return Outcome{}, codec.ErrUnavailable
	}
	kbps := p.BitrateKbps
	if kbps <= 0 {
		kbps = codec.DefaultBitrateKbps
	}
	data, err := codec.Encode(ctx, c, pcm, sampleRate, kbps)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: encode: %w", err)
	}
	f := c.Format()
	return Outcome{
		Kind: KindCompressed,
		Artifact: audio.Artifact{
			Name:        p.baseName() + f.Extension,
			ContentType: f.ContentType,
			Data:        data,
		},
		Codec: c.Name(),
	}, nil
}

func wavOutcome(pcm []int16, sampleRate int, p Policy, reason error) Outcome {
	return Outcome{
		Kind: KindLosslessFallback,
		Artifact: audio.Artifact{
			Name:        p.baseName() + audio.ExtensionWAV,
			ContentType: audio.ContentTypeWAV,
			Data:        audio.EncodeWAV(pcm, sampleRate),
		},
		Codec:  FormatWAV,
		Reason: reason,
	}
}

// Slog returns the outcome as log attributes.
func (o Outcome) Slog() slog.Attr {
	attrs := []any{
		slog.String("kind", o.Kind.String()),
		slog.String("codec", o.Codec),
		slog.String("name", o.Artifact.Name),
		slog.Int("bytes", o.Artifact.Size()),
	}
	if o.Reason != nil {
		attrs = append(attrs, slog.String("reason", o.Reason.Error()))
	}
	return slog.Group("outcome", attrs...)
}
