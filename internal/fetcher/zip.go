package fetcher

import (
	"archive/zip"
	"bytes"
	"path"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

var exportExts = map[string]bool{".csv": true, ".xlsx": true}

// ExtractExport picks the export file out of a ZIP archive held in memory.
// A non-empty name selects that entry exactly. Otherwise the archive must hold
// at least one .csv or .xlsx file; when there are several, an entry whose
// base name mentions "order" wins, then the first by path.
func ExtractExport(data []byte, name string, maxBytes int64) (*Payload, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	if name != "" {
		for _, f := range r.File {
			if f.Name == name {
				return readEntry(f, maxBytes)
			}
		}
		return nil, eris.Errorf("zip: file %q not found in archive", name)
	}

	var candidates []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || skipEntry(f.Name) {
			continue
		}
		if exportExts[strings.ToLower(path.Ext(f.Name))] {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, eris.New("zip: no csv or xlsx file in archive")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		oi, oj := mentionsOrder(candidates[i].Name), mentionsOrder(candidates[j].Name)
		if oi != oj {
			return oi
		}
		return candidates[i].Name < candidates[j].Name
	})
	return readEntry(candidates[0], maxBytes)
}

// skipEntry drops macOS resource forks and hidden files.
func skipEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), ".")
}

func mentionsOrder(name string) bool {
	return strings.Contains(strings.ToLower(path.Base(name)), "order")
}

func readEntry(f *zip.File, maxBytes int64) (*Payload, error) {
	if strings.Contains(f.Name, "..") {
		return nil, eris.Errorf("zip: illegal path %q", f.Name)
	}
	if maxBytes > 0 && f.UncompressedSize64 > uint64(maxBytes) {
		return nil, eris.Errorf("zip: entry %q exceeds %d bytes", f.Name, maxBytes)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	limit := maxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := readLimited(rc, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: read entry %q", f.Name)
	}
	return &Payload{Name: path.Base(f.Name), Data: data}, nil
}
