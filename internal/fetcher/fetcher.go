// Package fetcher loads raw export payloads from local files, HTTP(S) URLs,
// and ZIP data downloads.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultMaxBytes caps a single payload.
const DefaultMaxBytes int64 = 64 << 20

// Fetcher downloads remote payloads.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Payload is a loaded export and the file name it was read from. For ZIP
// archives Name is the selected entry.
type Payload struct {
	Name string
	Data []byte
}

// Loader resolves a location string into a Payload.
type Loader struct {
	remote   Fetcher
	maxBytes int64
	entry    string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithEntry selects a named entry when the location is a ZIP archive.
func WithEntry(name string) LoaderOption {
	return func(l *Loader) { l.entry = name }
}

// NewLoader creates a Loader. A nil remote disables URL locations.
func NewLoader(remote Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{remote: remote, maxBytes: DefaultMaxBytes}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads location, which is a local path or an http(s) URL. ZIP
// archives are unpacked to the export entry they contain.
func (l *Loader) Load(ctx context.Context, location string) (*Payload, error) {
	if location == "" {
		return nil, eris.New("fetcher: empty location")
	}

	var (
		p   *Payload
		err error
	)
	if IsURL(location) {
		p, err = l.loadURL(ctx, location)
	} else {
		p, err = l.loadFile(location)
	}
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(filepath.Ext(p.Name), ".zip") {
		return p, nil
	}
	entry, err := ExtractExport(p.Data, l.entry, l.maxBytes)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unpack %s", location)
	}
	zap.L().Debug("fetcher: selected archive entry",
		zap.String("archive", location),
		zap.String("entry", entry.Name),
		zap.Int("bytes", len(entry.Data)),
	)
	return entry, nil
}

func (l *Loader) loadURL(ctx context.Context, location string) (*Payload, error) {
	if l.remote == nil {
		return nil, eris.Errorf("fetcher: remote locations disabled: %s", location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", location)
	}

	body, err := l.remote.Download(ctx, location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", location)
	}
	defer body.Close() //nolint:errcheck

	data, err := readLimited(body, l.maxBytes)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", location)
	}
	return &Payload{Name: path.Base(u.Path), Data: data}, nil
}

func (l *Loader) loadFile(location string) (*Payload, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", location)
	}
	defer f.Close() //nolint:errcheck

	data, err := readLimited(f, l.maxBytes)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", location)
	}
	return &Payload{Name: filepath.Base(location), Data: data}, nil
}

// IsURL reports whether location uses the http or https scheme.
func IsURL(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, eris.Errorf("payload exceeds %d bytes", limit)
	}
	return data, nil
}
