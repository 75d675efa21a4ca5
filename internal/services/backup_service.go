// Package services provides frontend-agnostic backup orchestration between
// the local conversation store, backup archives and remote destinations.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wireapp/wire-desktop/internal/account"
	"github.com/wireapp/wire-desktop/internal/backup"
	"github.com/wireapp/wire-desktop/internal/cloud"
	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/events"
	"github.com/wireapp/wire-desktop/internal/logging"
	"github.com/wireapp/wire-desktop/internal/progress"
	"github.com/wireapp/wire-desktop/internal/storage"
	"github.com/wireapp/wire-desktop/internal/version"
)

var (
	ErrUnboundAccount     = errors.New("account is not signed in")
	ErrDifferentAccount   = errors.New("backup belongs to a different account")
	ErrIncompatibleBackup = errors.New("backup was created by a newer version")
	ErrPublishFailed      = errors.New("failed to publish backup")
)

// StoreOpener opens the local store of one account.
type StoreOpener func(accountID string) (*storage.ConversationStore, error)

// BackupService exports and imports account data. It is safe for concurrent
// use; every call works on its own writer or reader.
type BackupService struct {
	open          StoreOpener
	publisher     *cloud.Publisher
	eventBus      *events.EventBus
	logger        *logging.Logger
	batchSize     int
	appVersion    string
	now           func() time.Time
	writerOptions []backup.WriterOption
	readerOptions []backup.ReaderOption
}

// Option configures a BackupService.
type Option func(*BackupService)

func WithPublisher(p *cloud.Publisher) Option {
	return func(s *BackupService) { s.publisher = p }
}

func WithEventBus(bus *events.EventBus) Option {
	return func(s *BackupService) { s.eventBus = bus }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *BackupService) { s.logger = l.Component("backup-service") }
}

// WithBatchSize sets the rows read per SaveTable call.
func WithBatchSize(n int) Option {
	return func(s *BackupService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithAppVersion overrides the version written to and checked against
// archive metadata.
func WithAppVersion(v string) Option {
	return func(s *BackupService) { s.appVersion = v }
}

func WithClock(now func() time.Time) Option {
	return func(s *BackupService) {
		s.now = now
		s.writerOptions = append(s.writerOptions, backup.WithClock(now))
	}
}

// WithWriterOptions passes options to every backup.Writer.
func WithWriterOptions(opts ...backup.WriterOption) Option {
	return func(s *BackupService) { s.writerOptions = append(s.writerOptions, opts...) }
}

// WithReaderOptions passes options to every backup.Reader.
func WithReaderOptions(opts ...backup.ReaderOption) Option {
	return func(s *BackupService) { s.readerOptions = append(s.readerOptions, opts...) }
}

// NewBackupService creates a service reading account data through open.
func NewBackupService(open StoreOpener, opts ...Option) *BackupService {
	s := &BackupService{
		open:       open,
		logger:     logging.NewNopLogger().Component("backup-service"),
		batchSize:  constants.ExportBatchSize,
		appVersion: version.Version,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = cloud.NewPublisher(s.logger)
	}
	return s
}

// ExportOptions controls one export.
type ExportOptions struct {
	// TargetDir receives the archive.
	TargetDir string
	// Destinations, when set, receive a copy of the finished archive.
	Destinations []cloud.Destination
	Reporter     progress.Reporter
	// PublishProgress receives per destination upload fractions.
	PublishProgress func(dest string, fraction float64)
}

// ExportResult describes a finished export.
type ExportResult struct {
	Path      string
	Rows      int
	Tables    map[string]int
	Published []cloud.Result
}

// Export writes the local data of acc into an archive in opts.TargetDir and
// publishes it to opts.Destinations. A publish failure keeps the local
// archive; the result is returned together with an ErrPublishFailed error.
func (s *BackupService) Export(ctx context.Context, acc account.Account, opts ExportOptions) (*ExportResult, error) {
	if !acc.IsBound() {
		return nil, ErrUnboundAccount
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}

	res, err := s.export(ctx, acc, opts.TargetDir, reporter)
	if err != nil {
		reporter.Error(err)
		s.publishEvent(events.EventBackupFailed, acc.ID, "export", "", err)
		return nil, err
	}
	reporter.Finish()

	if len(opts.Destinations) > 0 {
		results, perr := s.Publish(ctx, acc.ID, res.Path, opts.Destinations, opts.PublishProgress)
		res.Published = results
		if perr != nil {
			return res, perr
		}
	}

	s.publishEvent(events.EventBackupCompleted, acc.ID, "export", res.Path, nil)
	s.logger.Info().
		Str("account_id", acc.ID).
		Str("path", res.Path).
		Int("rows", res.Rows).
		Int("destinations", len(res.Published)).
		Msg("Backup exported")
	return res, nil
}

// Publish uploads a finished archive of accountID to dests. Failures are
// joined with ErrPublishFailed; the archive itself is left in place.
func (s *BackupService) Publish(ctx context.Context, accountID, archivePath string, dests []cloud.Destination, progress func(dest string, fraction float64)) ([]cloud.Result, error) {
	s.publishEvent(events.EventBackupProgress, accountID, "export", archivePath, nil)
	results, err := s.publisher.Publish(ctx, dests, archivePath, filepath.Base(archivePath), progress)
	if err != nil {
		s.publishEvent(events.EventBackupFailed, accountID, "publish", archivePath, err)
		return results, errors.Join(ErrPublishFailed, err)
	}
	return results, nil
}

func (s *BackupService) export(ctx context.Context, acc account.Account, targetDir string, reporter progress.Reporter) (*ExportResult, error) {
	db, err := s.open(acc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	defer db.Close()

	tables := db.ListTables()
	var total int
	for _, t := range tables {
		n, err := db.Count(ctx, t)
		if err != nil {
			return nil, err
		}
		total += n
	}

	writer, err := backup.NewWriter(targetDir, s.writerOpts()...)
	if err != nil {
		return nil, err
	}
	// No-op once packaged
	defer writer.Discard()

	res := &ExportResult{Tables: make(map[string]int, len(tables))}
	reporter.Start(int64(total), "Exporting "+acc.Name)

	for _, table := range tables {
		reporter.SetDescription(table)
		err := db.StreamRows(ctx, table, s.batchSize, func(rows []string) error {
			if err := writer.SaveTable(table, strings.Join(rows, "\n")); err != nil {
				return err
			}
			res.Rows += len(rows)
			res.Tables[table] += len(rows)
			reporter.Update(int64(res.Rows))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", table, err)
		}
	}

	meta := backup.Metadata{
		ClientID:     acc.SessionID,
		CreationTime: s.now().UTC(),
		Platform:     constants.Platform,
		UserID:       acc.UserID,
		Version:      s.appVersion,
	}
	if err := writer.SaveMetaDescription(meta); err != nil {
		return nil, err
	}

	reporter.SetDescription("Packaging archive")
	path, err := writer.SaveArchiveFile()
	if err != nil {
		return nil, err
	}
	res.Path = path
	return res, nil
}

func (s *BackupService) writerOpts() []backup.WriterOption {
	opts := []backup.WriterOption{backup.WithWriterLogger(s.logger)}
	return append(opts, s.writerOptions...)
}

// ImportOptions controls one import.
type ImportOptions struct {
	Reporter progress.Reporter
}

// ImportResult describes a finished import.
type ImportResult struct {
	Meta    backup.Metadata
	Rows    int
	Tables  map[string]int
	Skipped []string
}

// Import restores archivePath into the local store of acc. The archive must
// belong to the same user and must not come from a newer major version.
// All known tables are replaced in one transaction; unknown tables are skipped.
func (s *BackupService) Import(ctx context.Context, acc account.Account, archivePath string, opts ImportOptions) (*ImportResult, error) {
	if !acc.IsBound() {
		return nil, ErrUnboundAccount
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}

	res, err := s.importArchive(ctx, acc, archivePath, reporter)
	if err != nil {
		reporter.Error(err)
		s.publishEvent(events.EventBackupFailed, acc.ID, "import", archivePath, err)
		return nil, err
	}
	reporter.Finish()

	s.publishEvent(events.EventBackupCompleted, acc.ID, "import", archivePath, nil)
	s.logger.Info().
		Str("account_id", acc.ID).
		Str("archive", archivePath).
		Int("rows", res.Rows).
		Strs("skipped", res.Skipped).
		Msg("Backup imported")
	return res, nil
}

func (s *BackupService) importArchive(ctx context.Context, acc account.Account, archivePath string, reporter progress.Reporter) (*ImportResult, error) {
	restored, err := s.reader().RestoreFromArchive(archivePath)
	if err != nil {
		return nil, err
	}
	if err := s.checkCompatible(acc, restored.Meta); err != nil {
		return nil, err
	}

	db, err := s.open(acc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	defer db.Close()

	res := &ImportResult{Meta: restored.Meta, Tables: make(map[string]int)}
	parsed := make(map[string][]string)
	var total int
	for _, t := range restored.Tables {
		if !storage.IsTable(t.Name) {
			res.Skipped = append(res.Skipped, t.Name)
			continue
		}
		rows := SplitRows(t.Content)
		parsed[t.Name] = rows
		total += len(rows)
	}

	reporter.Start(int64(total), "Importing "+acc.Name)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// One transaction for the whole archive: a bad row in any table leaves
	// the local store as it was.
	if err := db.ReplaceTables(ctx, parsed); err != nil {
		return nil, fmt.Errorf("failed to import: %w", err)
	}
	for name, rows := range parsed {
		res.Rows += len(rows)
		res.Tables[name] = len(rows)
	}
	reporter.Update(int64(res.Rows))
	return res, nil
}

func (s *BackupService) checkCompatible(acc account.Account, meta backup.Metadata) error {
	if meta.UserID != acc.UserID {
		return fmt.Errorf("%w: archive user %q, account user %q", ErrDifferentAccount, meta.UserID, acc.UserID)
	}
	if backupMajor, appMajor := version.Major(meta.Version), version.Major(s.appVersion); backupMajor > appMajor {
		return fmt.Errorf("%w: backup %s, app %s", ErrIncompatibleBackup, meta.Version, s.appVersion)
	}
	return nil
}

// Inspection summarizes an archive without importing it.
type Inspection struct {
	Meta   backup.Metadata
	Tables map[string]int
}

// Inspect reads archivePath and counts the rows of every table.
func (s *BackupService) Inspect(archivePath string) (*Inspection, error) {
	restored, err := s.reader().RestoreFromArchive(archivePath)
	if err != nil {
		return nil, err
	}
	out := &Inspection{Meta: restored.Meta, Tables: make(map[string]int, len(restored.Tables))}
	for _, t := range restored.Tables {
		out.Tables[t.Name] = len(SplitRows(t.Content))
	}
	return out, nil
}

func (s *BackupService) reader() *backup.Reader {
	opts := []backup.ReaderOption{backup.WithReaderLogger(s.logger)}
	return backup.NewReader(append(opts, s.readerOptions...)...)
}

// SplitRows turns table file content back into rows. Batches are separated
// by "\r\n" and rows within a batch by "\n". A batch that is a JSON array
// contributes its elements, as written by clients that save whole pages.
func SplitRows(content string) []string {
	var rows []string
	for _, batch := range strings.Split(content, constants.RowSeparator) {
		trimmed := strings.TrimSpace(batch)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			var elems []json.RawMessage
			if err := json.Unmarshal([]byte(trimmed), &elems); err == nil {
				for _, e := range elems {
					rows = append(rows, string(e))
				}
				continue
			}
		}
		for _, line := range strings.Split(batch, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				rows = append(rows, line)
			}
		}
	}
	return rows
}

func (s *BackupService) publishEvent(t events.EventType, accountID, operation, path string, err error) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(&events.BackupEvent{
		BaseEvent: events.NewBase(t),
		AccountID: accountID,
		Operation: operation,
		Path:      path,
		Error:     err,
	})
}
