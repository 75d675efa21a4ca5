// Package backup writes and reads account backup archives.
//
// An archive is a gzip-compressed tar holding export.json (Metadata) and one
// <table>.txt file per exported table. Each SaveTable call appends one payload
// followed by "\r\n" to its table file; the reader hands the file content back
// unchanged, so splitting rows is left to the importer.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/diskspace"
	"github.com/wireapp/wire-desktop/internal/logging"
	"github.com/wireapp/wire-desktop/internal/util/paths"
	"github.com/wireapp/wire-desktop/internal/util/sanitize"
	"github.com/wireapp/wire-desktop/internal/util/tar"
)

// metaStem is the reserved table name that would collide with export.json.
const metaStem = "export"

// Writer accumulates one export session in a private working directory and
// packages it into a single archive. A Writer is single-use.
type Writer struct {
	mu         sync.Mutex
	rootDir    string
	workDir    string
	now        func() time.Time
	logger     *logging.Logger
	checkSpace bool
	closed     bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets the logger used for cleanup warnings.
func WithWriterLogger(l *logging.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithClock overrides the clock used for the archive name.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WithoutSpaceCheck disables the free disk space check before packaging.
func WithoutSpaceCheck() WriterOption {
	return func(w *Writer) { w.checkSpace = false }
}

// NewWriter creates the working directory below rootDir. The archive is
// later written to rootDir itself.
func NewWriter(rootDir string, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		rootDir:    rootDir,
		now:        time.Now,
		logger:     logging.NewNopLogger(),
		checkSpace: true,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := os.MkdirAll(rootDir, 0700); err != nil {
		return nil, ioFailure("create writer", rootDir, err)
	}
	workDir := filepath.Join(rootDir, ".backup-"+uuid.NewString())
	if err := os.Mkdir(workDir, 0700); err != nil {
		return nil, ioFailure("create writer", workDir, err)
	}
	w.workDir = workDir
	return w, nil
}

// WorkDir returns the directory holding the not yet packaged files.
func (w *Writer) WorkDir() string {
	return w.workDir
}

// SaveTable appends data plus "\r\n" to <tableName>.txt. Strings, byte slices
// and json.RawMessage are written verbatim; any other value is JSON-encoded.
func (w *Writer) SaveTable(tableName string, data any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	name, err := sanitize.TableName(tableName)
	if err != nil || name == metaStem {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, tableName)
	}

	payload, err := encodePayload(data)
	if err != nil {
		return fmt.Errorf("failed to encode table %s: %w", name, err)
	}

	path := filepath.Join(w.workDir, name+constants.TableFileExt)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return ioFailure("save table", path, err)
	}
	_, err = f.Write(append(payload, constants.RowSeparator...))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ioFailure("save table", path, err)
	}
	return nil
}

func encodePayload(data any) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return append([]byte(nil), v...), nil
	default:
		return json.Marshal(v)
	}
}

// SaveMetaDescription writes export.json, replacing earlier content.
func (w *Writer) SaveMetaDescription(meta Metadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	path := filepath.Join(w.workDir, constants.MetaDataFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return ioFailure("save metadata", path, err)
	}
	return nil
}

// SaveArchiveFile packages the working directory into
// backup-<YYYY-MM-DD_HH-mm-ss>.tar.gz inside the root directory and returns
// its absolute path. The working directory is removed in every case. With
// nothing written it fails with KindEmptyArchive and writes no archive.
func (w *Writer) SaveArchiveFile() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", ErrWriterClosed
	}
	w.closed = true
	defer w.removeWorkDir()

	entries, err := os.ReadDir(w.workDir)
	if err != nil {
		return "", ioFailure("package", w.workDir, err)
	}

	var total int64
	files := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		total += info.Size()
		files++
	}
	if files == 0 {
		return "", &Error{Kind: KindEmptyArchive, Op: "package", Path: w.workDir}
	}

	name := constants.ArchivePrefix + w.now().Format(constants.ArchiveTimeLayout) + constants.ArchiveExt

	if w.checkSpace {
		target := filepath.Join(w.rootDir, name)
		if err := diskspace.CheckAvailableSpace(target, total, 1+constants.DiskSpaceBufferPercent); err != nil {
			return "", ioFailure("package", target, err)
		}
	}

	archivePath, err := w.createArchive(name)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return archivePath, nil
	}
	w.logger.Info().Str("archive", abs).Int("files", files).Int64("bytes", total).Msg("Backup archive written")
	return abs, nil
}

// createArchive picks a free name and writes the archive. A name taken
// between the check and the exclusive create is retried with the next suffix.
func (w *Writer) createArchive(name string) (string, error) {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		path, err := paths.UniquePath(w.rootDir, name)
		if err != nil {
			return "", ioFailure("package", w.rootDir, err)
		}
		err = tar.CreateFlatTarGz(w.workDir, path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", ioFailure("package", path, err)
		}
		lastErr = err
	}
	return "", ioFailure("package", w.rootDir, lastErr)
}

func (w *Writer) removeWorkDir() {
	if err := os.RemoveAll(w.workDir); err != nil {
		w.logger.Warn().Err(err).Str("dir", w.workDir).Msg("Failed to remove backup working directory")
	}
}

// Discard removes the working directory without packaging. Safe to call after
// SaveArchiveFile.
func (w *Writer) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.removeWorkDir()
}
