package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// maxBinarySize caps downloaded codec binaries.
const maxBinarySize = 64 << 20

// Env carries what sources need to turn a located binary into a [Codec].
type Env struct {
	// CacheDir receives downloaded binaries. Default: os.UserCacheDir()/voicerec.
	CacheDir string

	// BinaryName is the file name used for downloaded binaries (e.g. "lame").
	BinaryName string

	// FromBinary wraps an executable path in a Codec.
	FromBinary func(path string) (Codec, error)

	// Builtins maps names usable as "builtin:<name>" to in-process codecs.
	Builtins map[string]Codec

	// HTTPClient is used by http(s) sources. Default: http.DefaultClient.
	HTTPClient *http.Client

	// Endpoints redirects the cloud sources to compatible services.
	Endpoints Endpoints

	// AWSOptions are appended to the options s3 sources load the AWS
	// configuration with.
	AWSOptions []func(*awsconfig.LoadOptions) error
}

// Endpoints override the public object-store endpoints. Empty fields use
// the provider default.
type Endpoints struct {
	// S3 is an S3-compatible base URL (MinIO, R2, ...). Requests use
	// path-style addressing.
	S3 string

	// GCS is a JSON API endpoint such as "http://localhost:4443/storage/v1/".
	// Requests made there are unauthenticated.
	GCS string

	// Azure is a blob service root in Azurite layout; the account name is
	// appended as the first path segment.
	Azure string
}

func (e Env) cacheDir() (string, error) {
	if e.CacheDir != "" {
		return e.CacheDir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("codec: resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "voicerec"), nil
}

func (e Env) binaryName() string {
	if e.BinaryName != "" {
		return e.BinaryName
	}
	return "codec"
}

func (e Env) wrap(path string) (Codec, error) {
	if e.FromBinary == nil {
		return nil, fmt.Errorf("codec: no binary factory configured for %q", path)
	}
	return e.FromBinary(path)
}

// install streams r into the cache dir as an executable and wraps it.
func (e Env) install(r io.Reader) (Codec, error) {
	dir, err := e.cacheDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("codec: create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, e.binaryName()+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("codec: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	n, err := io.Copy(tmp, io.LimitReader(r, maxBinarySize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("codec: write binary: %w", err)
	}
	if n == 0 {
		return nil, errors.New("codec: downloaded binary is empty")
	}
	if n > maxBinarySize {
		return nil, fmt.Errorf("codec: downloaded binary exceeds %d bytes", maxBinarySize)
	}
	if err := os.Chmod(tmpName, 0o755); err != nil {
		return nil, fmt.Errorf("codec: chmod binary: %w", err)
	}
	dst := filepath.Join(dir, e.binaryName())
	if err := os.Rename(tmpName, dst); err != nil {
		return nil, fmt.Errorf("codec: install binary: %w", err)
	}
	return e.wrap(dst)
}

// ParseSources parses each URI with [ParseSource], preserving order.
func ParseSources(uris []string, env Env) ([]Source, error) {
	if len(uris) == 0 {
		return nil, ErrNoSources
	}
	var (
		out  []Source
		errs []error
	)
	for _, u := range uris {
		s, err := ParseSource(u, env)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

// ParseSource builds a [Source] from a URI. Supported forms:
//
//	builtin:<name>               in-process codec from Env.Builtins
//	path:<name>                  executable found on $PATH
//	file:///abs/path             existing local executable
//	https://host/path            downloaded into the cache dir
//	s3://bucket/key              AWS S3 object
//	gs://bucket/object           Google Cloud Storage object
//	az://account/container/blob  Azure blob (anonymous read)
func ParseSource(uri string, env Env) (Source, error) {
	if name, ok := strings.CutPrefix(uri, "builtin:"); ok {
		return builtinSource{name: name, builtins: env.Builtins}, nil
	}
	if name, ok := strings.CutPrefix(uri, "path:"); ok {
		if name == "" {
			return nil, fmt.Errorf("%w: %q: empty executable name", ErrUnsupportedSource, uri)
		}
		return pathSource{name: name, env: env}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("codec: parse source %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return fileSource{path: u.Path, env: env}, nil
	case "http", "https":
		return httpSource{url: uri, env: env}, nil
	case "s3":
		return newS3Source(u, env)
	case "gs":
		return newGCSSource(u, env)
	case "az":
		return newAzureSource(u, env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, uri)
	}
}

// ── builtin ──────────────────────────────────────────────────────────────────

type builtinSource struct {
	name     string
	builtins map[string]Codec
}

func (s builtinSource) Name() string { return "builtin:" + s.name }

func (s builtinSource) Fetch(context.Context) (Codec, error) {
	c, ok := s.builtins[s.name]
	if !ok || c == nil {
		return nil, fmt.Errorf("codec: builtin %q not compiled in", s.name)
	}
	return c, nil
}

// ── path ─────────────────────────────────────────────────────────────────────

type pathSource struct {
	name string
	env  Env
}

func (s pathSource) Name() string { return "path:" + s.name }

func (s pathSource) Fetch(context.Context) (Codec, error) {
	p, err := exec.LookPath(s.name)
	if err != nil {
		return nil, fmt.Errorf("codec: look up %q: %w", s.name, err)
	}
	return s.env.wrap(p)
}

// ── file ─────────────────────────────────────────────────────────────────────

type fileSource struct {
	path string
	env  Env
}

func (s fileSource) Name() string { return "file://" + s.path }

func (s fileSource) Fetch(context.Context) (Codec, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("codec: stat %q: %w", s.path, err)
	}
	if fi.IsDir() || fi.Mode().Perm()&0o111 == 0 {
		return nil, fmt.Errorf("codec: %q is not an executable file", s.path)
	}
	return s.env.wrap(s.path)
}

// ── http ─────────────────────────────────────────────────────────────────────

type httpSource struct {
	url string
	env Env
}

func (s httpSource) Name() string { return s.url }

func (s httpSource) Fetch(ctx context.Context) (Codec, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: build request: %w", err)
	}
	client := s.env.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("codec: fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("codec: fetch %s: unexpected status %s", s.url, resp.Status)
	}
	return s.env.install(resp.Body)
}
