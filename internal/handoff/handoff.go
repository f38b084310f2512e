// Package handoff delivers finished recordings to where they are consumed:
// a local directory, an HTTP upload endpoint, an S3 bucket or a Discord
// channel. Every [Handoff] receives each artifact exactly once and takes
// ownership of it.
package handoff

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/voicerec/pkg/audio"
)

// Handoff accepts a finished artifact.
type Handoff interface {
	// Name identifies the target kind in logs and metrics (e.g. "dir").
	Name() string

	// Deliver transfers a. It returns only after the target has accepted
	// the artifact or failed to.
	Deliver(ctx context.Context, a audio.Artifact) error
}

// timestampLayout sorts lexically in chronological order and is safe in
// file names and object keys.
const timestampLayout = "20060102T150405.000Z"

// maxNameAttempts bounds the numbered variants tried when a stamped name is
// already taken.
const maxNameAttempts = 100

// stampedName prefixes name with the UTC time t.
func stampedName(t time.Time, name string) string {
	return t.UTC().Format(timestampLayout) + "-" + name
}

// numberedName returns name for n == 0 and inserts "-n" before the
// extension otherwise: recording.wav, recording-1.wav, recording-2.wav.
func numberedName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(n) + ext
}
