package handoff

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MrWong99/voicerec/pkg/audio"
)

// Dir writes artifacts into a local directory. Files appear atomically: the
// data is written to a temporary file in the same directory and then linked
// or renamed into place. Timestamped names that are already taken get a
// numeric suffix, so a delivery never replaces an earlier recording.
type Dir struct {
	path      string
	overwrite bool
	now       func() time.Time
}

var _ Handoff = (*Dir)(nil)

// DirOption configures a [Dir].
type DirOption func(*Dir)

// WithOverwrite makes Dir write <dir>/<name>, replacing any previous file,
// instead of a timestamped name.
func WithOverwrite() DirOption {
	return func(d *Dir) { d.overwrite = true }
}

// WithClock overrides the time source used for timestamped names.
func WithClock(now func() time.Time) DirOption {
	return func(d *Dir) { d.now = now }
}

// NewDir returns a Dir rooted at path. The directory is created on first
// delivery.
func NewDir(path string, opts ...DirOption) *Dir {
	d := &Dir{path: path, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements [Handoff].
func (d *Dir) Name() string { return "dir" }

// Deliver implements [Handoff].
func (d *Dir) Deliver(ctx context.Context, a audio.Artifact) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("handoff: dir: %w", err)
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("handoff: dir: create %q: %w", d.path, err)
	}

	tmp, err := os.CreateTemp(d.path, ".voicerec-*.tmp")
	if err != nil {
		return fmt.Errorf("handoff: dir: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("handoff: dir: write %q: %w", tmpName, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("handoff: dir: chmod %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("handoff: dir: close %q: %w", tmpName, err)
	}

	var dst string
	if d.overwrite {
		dst = filepath.Join(d.path, a.Name)
		if err := os.Rename(tmpName, dst); err != nil {
			return fmt.Errorf("handoff: dir: %w", err)
		}
	} else if dst, err = linkUnique(tmpName, d.path, stampedName(d.now(), a.Name)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "recording saved", "path", dst, "bytes", a.Size())
	return nil
}

// linkUnique hard-links tmpName to the first free numbered variant of name
// in dir. Linking fails instead of replacing, so an existing recording is
// never overwritten.
func linkUnique(tmpName, dir, name string) (string, error) {
	for n := range maxNameAttempts {
		dst := filepath.Join(dir, numberedName(name, n))
		err := os.Link(tmpName, dst)
		if err == nil {
			return dst, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("handoff: dir: %w", err)
		}
	}
	return "", fmt.Errorf("handoff: dir: %d names for %q already taken", maxNameAttempts, name)
}
