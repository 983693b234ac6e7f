package emtf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/spatial"
)

// IndexFileName is the compressed catalog index written into a repository.
const IndexFileName = ".emtf-index.json.zst"

// indexVersion 2 stores locators relative to the repository directory.
const indexVersion = 2

type fileStamp struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"`
}

// indexFile is the cached catalog. Entry locators are slash-separated paths
// relative to the repository directory.
type indexFile struct {
	Version int             `json:"version"`
	Files   []fileStamp     `json:"files"`
	Entries []spatial.Entry `json:"entries"`
}

// Repository loads a directory of EMTF XML files as a spatial catalog.
type Repository struct {
	logger *slog.Logger
}

// NewRepository creates a Repository.
func NewRepository(logger *slog.Logger) *Repository {
	return &Repository{logger: logger}
}

// Load indexes every *.xml and *.xml.gz file under dir. The index is cached
// in dir and reused while the set of files, their sizes and modification
// times are unchanged.
func (r *Repository) Load(ctx context.Context, dir string) (domain.SpatialIndex, error) {
	stamps, err := scan(dir)
	if err != nil {
		return nil, fmt.Errorf("scan emtf repository: %w", err)
	}

	cachePath := filepath.Join(dir, IndexFileName)
	if entries, ok := r.readIndex(cachePath, stamps); ok {
		r.logger.Debug("emtf index cache hit", "path", cachePath, "entries", len(entries))
		idx, err := spatial.NewIndex(resolveLocators(dir, entries))
		if err != nil {
			return nil, err
		}
		return idx, nil
	}

	entries, err := r.build(ctx, dir, stamps)
	if err != nil {
		return nil, err
	}
	idx, err := spatial.NewIndex(resolveLocators(dir, entries))
	if err != nil {
		return nil, err
	}
	if err := writeIndex(cachePath, indexFile{Version: indexVersion, Files: stamps, Entries: entries}); err != nil {
		r.logger.Warn("failed to write emtf index cache", "path", cachePath, "error", err)
	}
	r.logger.Info("emtf repository indexed", "path", dir, "files", len(stamps), "entries", len(entries))
	return idx, nil
}

func scan(dir string) ([]fileStamp, error) {
	var stamps []fileStamp
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTransferFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		stamps = append(stamps, fileStamp{
			Name:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(stamps, func(a, b fileStamp) int { return strings.Compare(a.Name, b.Name) })
	return stamps, nil
}

func isTransferFile(name string) bool {
	return strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".xml.gz")
}

func (r *Repository) build(ctx context.Context, dir string, stamps []fileStamp) ([]spatial.Entry, error) {
	seen := make(map[string]string, len(stamps))
	entries := make([]spatial.Entry, 0, len(stamps))
	for _, st := range stamps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, filepath.FromSlash(st.Name))
		tf, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(tf.ProductID, domain.SpatialPrefix) {
			r.logger.Debug("skipping transfer function outside the spatial namespace", "product_id", tf.ProductID, "file", st.Name)
			continue
		}
		if prev, dup := seen[tf.ProductID]; dup {
			r.logger.Warn("duplicate transfer function ignored", "product_id", tf.ProductID, "file", st.Name, "kept", prev)
			continue
		}
		seen[tf.ProductID] = st.Name
		entries = append(entries, spatial.Entry{
			ID:        tf.ProductID,
			Latitude:  tf.Latitude,
			Longitude: tf.Longitude,
			Quality:   tf.Rating,
			Locator:   st.Name,
		})
	}
	return entries, nil
}

// resolveLocators returns a copy of entries with locators joined onto dir.
func resolveLocators(dir string, entries []spatial.Entry) []spatial.Entry {
	out := slices.Clone(entries)
	for i := range out {
		out[i].Locator = filepath.Join(dir, filepath.FromSlash(out[i].Locator))
	}
	return out
}

func (r *Repository) readIndex(path string, stamps []fileStamp) ([]spatial.Entry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, false
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		r.logger.Warn("corrupt emtf index cache", "path", path, "error", err)
		return nil, false
	}
	var idx indexFile
	if err := json.Unmarshal(raw, &idx); err != nil {
		r.logger.Warn("corrupt emtf index cache", "path", path, "error", err)
		return nil, false
	}
	if idx.Version != indexVersion || !slices.Equal(idx.Files, stamps) {
		return nil, false
	}
	return idx.Entries, true
}

func writeIndex(path string, idx indexFile) error {
	raw, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".emtf-index-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
