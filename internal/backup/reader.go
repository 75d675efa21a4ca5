package backup

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/logging"
	"github.com/wireapp/wire-desktop/internal/util/paths"
	"github.com/wireapp/wire-desktop/internal/util/tar"
)

// Table is one restored table file.
type Table struct {
	Name    string
	Content string
}

// Restored is the content of one archive.
type Restored struct {
	// MetaData is the raw export.json text.
	MetaData string
	// Meta is MetaData decoded.
	Meta Metadata
	// Tables holds every other top-level file, sorted by name.
	Tables []Table
}

// Table returns the table with the given name.
func (r *Restored) Table(name string) (Table, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Reader restores archives written by Writer. A Reader holds no per-archive
// state; concurrent restores use separate scratch directories.
type Reader struct {
	scratchRoot string
	maxBytes    int64
	logger      *logging.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithScratchRoot sets the parent of the per-restore scratch directories.
func WithScratchRoot(dir string) ReaderOption {
	return func(r *Reader) { r.scratchRoot = dir }
}

// WithMaxExtractBytes caps the total extracted size. Zero disables the cap.
func WithMaxExtractBytes(n int64) ReaderOption {
	return func(r *Reader) { r.maxBytes = n }
}

// WithReaderLogger sets the logger used for cleanup warnings.
func WithReaderLogger(l *logging.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// NewReader creates a Reader scratching in os.TempDir() by default.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		scratchRoot: os.TempDir(),
		maxBytes:    constants.MaxExtractBytes,
		logger:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RestoreFromArchive extracts filename into a fresh scratch directory and
// returns its metadata and tables. The scratch directory is removed before
// returning, whatever the outcome.
func (r *Reader) RestoreFromArchive(filename string) (*Restored, error) {
	scratch := filepath.Join(r.scratchRoot, "restore-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0700); err != nil {
		return nil, ioFailure("restore", scratch, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.logger.Warn().Err(err).Str("dir", scratch).Msg("Failed to remove restore scratch directory")
		}
	}()

	stem, _ := paths.SplitExt(filepath.Base(filename))
	dest := filepath.Join(scratch, stem)

	if err := tar.ExtractTarGz(filename, dest, r.maxBytes); err != nil {
		return nil, ioFailure("restore", filename, err)
	}

	metaPath := filepath.Join(dest, constants.MetaDataFileName)
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, invalidMetaData(filename, err)
	}
	if !utf8.Valid(metaBytes) {
		return nil, invalidMetaData(filename, errors.New("metadata is not valid UTF-8"))
	}
	meta, err := ParseMetadata(string(metaBytes))
	if err != nil {
		return nil, invalidMetaData(filename, err)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return nil, ioFailure("restore", dest, err)
	}

	tables := make([]Table, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name() == constants.MetaDataFileName {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dest, entry.Name()))
		if err != nil {
			return nil, ioFailure("restore", entry.Name(), err)
		}
		tables = append(tables, Table{
			Name:    strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Content: string(content),
		})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	r.logger.Debug().Str("archive", filename).Int("tables", len(tables)).Msg("Backup archive restored")

	return &Restored{
		MetaData: string(metaBytes),
		Meta:     meta,
		Tables:   tables,
	}, nil
}
