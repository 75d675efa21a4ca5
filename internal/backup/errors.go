package backup

import (
	"errors"
	"fmt"
)

// Kind classifies a backup failure.
type Kind int

const (
	// KindIoFailure covers filesystem, compression and extraction failures.
	KindIoFailure Kind = iota + 1
	// KindInvalidMetaData means export.json is missing, unreadable or not a JSON object.
	KindInvalidMetaData
	// KindEmptyArchive means packaging was requested with nothing written.
	KindEmptyArchive
)

func (k Kind) String() string {
	switch k {
	case KindIoFailure:
		return "IoFailure"
	case KindInvalidMetaData:
		return "InvalidMetaData"
	case KindEmptyArchive:
		return "EmptyArchive"
	default:
		return "Unknown"
	}
}

// UserMessage returns the text shown to the user for this kind of failure.
func (k Kind) UserMessage() string {
	switch k {
	case KindInvalidMetaData:
		return "This backup file is invalid."
	case KindEmptyArchive:
		return "There is nothing to export."
	default:
		return "The backup could not be completed."
	}
}

// Sentinels for errors.Is. A *Error matches the sentinel of its Kind.
var (
	ErrIoFailure       = &Error{Kind: KindIoFailure}
	ErrInvalidMetaData = &Error{Kind: KindInvalidMetaData}
	ErrEmptyArchive    = &Error{Kind: KindEmptyArchive}
)

// ErrInvalidTableName is returned by SaveTable for names that cannot be used
// as a file stem.
var ErrInvalidTableName = errors.New("invalid table name")

// ErrWriterClosed is returned by a Writer after SaveArchiveFile has run.
var ErrWriterClosed = errors.New("backup writer already packaged")

// Error is the single error type of the backup pipeline.
type Error struct {
	Kind Kind
	Op   string // "save table", "save metadata", "package", "restore"
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so callers can test against the
// sentinels without caring about Op, Path or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func ioFailure(op, path string, err error) error {
	return &Error{Kind: KindIoFailure, Op: op, Path: path, Err: err}
}

func invalidMetaData(path string, err error) error {
	return &Error{Kind: KindInvalidMetaData, Op: "restore", Path: path, Err: err}
}

// KindOf returns the Kind of err, or 0 if err is not a backup error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// UserMessage maps any error from this package to user-facing text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != 0 {
		return k.UserMessage()
	}
	return fmt.Sprintf("The backup could not be completed: %v", err)
}
