package backup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)
}

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	w, err := NewWriter(root, WithClock(fixedClock), WithoutSpaceCheck())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	return w, root
}

func TestSaveTable_AppendsSeparator(t *testing.T) {
	w, _ := newTestWriter(t)

	if err := w.SaveTable("conversations", "row1\nrow2"); err != nil {
		t.Fatalf("SaveTable failed: %v", err)
	}
	if err := w.SaveTable("conversations", []byte("row3")); err != nil {
		t.Fatalf("SaveTable failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(w.WorkDir(), "conversations.txt"))
	if err != nil {
		t.Fatalf("table file missing: %v", err)
	}
	if want := "row1\nrow2\r\nrow3\r\n"; string(got) != want {
		t.Errorf("expected %q, got %q", want, string(got))
	}
}

func TestSaveTable_EncodesStructuredPayloads(t *testing.T) {
	w, _ := newTestWriter(t)

	rows := []map[string]any{{"id": "e1"}, {"id": "e2"}}
	if err := w.SaveTable("events", rows); err != nil {
		t.Fatalf("SaveTable failed: %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(w.WorkDir(), "events.txt"))
	if want := `[{"id":"e1"},{"id":"e2"}]` + "\r\n"; string(got) != want {
		t.Errorf("expected %q, got %q", want, string(got))
	}
}

func TestSaveTable_RejectsBadNames(t *testing.T) {
	w, _ := newTestWriter(t)

	for _, name := range []string{"", "../escape", "a/b", "export", ".."} {
		err := w.SaveTable(name, "x")
		if !errors.Is(err, ErrInvalidTableName) {
			t.Errorf("SaveTable(%q): expected ErrInvalidTableName, got %v", name, err)
		}
	}

	entries, _ := os.ReadDir(w.WorkDir())
	if len(entries) != 0 {
		t.Errorf("rejected names must not create files, found %d", len(entries))
	}
}

func TestSaveMetaDescription_Overwrites(t *testing.T) {
	w, _ := newTestWriter(t)

	if err := w.SaveMetaDescription(Metadata{UserID: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := w.SaveMetaDescription(Metadata{UserID: "second"}); err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(filepath.Join(w.WorkDir(), "export.json"))
	if strings.Contains(string(got), "first") || !strings.Contains(string(got), `"user_id":"second"`) {
		t.Errorf("unexpected metadata content: %s", got)
	}
}

func TestSaveArchiveFile_NameAndCleanup(t *testing.T) {
	w, root := newTestWriter(t)

	if err := w.SaveTable("users", "u"); err != nil {
		t.Fatal(err)
	}
	path, err := w.SaveArchiveFile()
	if err != nil {
		t.Fatalf("SaveArchiveFile failed: %v", err)
	}

	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %s", path)
	}
	if want := filepath.Join(root, "backup-2024-03-05_14-07-09.tar.gz"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("archive missing: %v", err)
	}
	if _, err := os.Stat(w.WorkDir()); !os.IsNotExist(err) {
		t.Errorf("working directory should be removed, stat err = %v", err)
	}
}

func TestSaveArchiveFile_SameSecondCollision(t *testing.T) {
	root := t.TempDir()

	var paths []string
	for i := 0; i < 2; i++ {
		w, err := NewWriter(root, WithClock(fixedClock), WithoutSpaceCheck())
		if err != nil {
			t.Fatal(err)
		}
		if err := w.SaveTable("users", "u"); err != nil {
			t.Fatal(err)
		}
		p, err := w.SaveArchiveFile()
		if err != nil {
			t.Fatalf("SaveArchiveFile #%d failed: %v", i, err)
		}
		paths = append(paths, p)
	}

	if paths[0] == paths[1] {
		t.Fatalf("second archive overwrote the first: %s", paths[0])
	}
	if filepath.Base(paths[1]) != "backup-2024-03-05_14-07-09_1.tar.gz" {
		t.Errorf("unexpected collision name %s", filepath.Base(paths[1]))
	}
}

func TestSaveArchiveFile_Empty(t *testing.T) {
	w, root := newTestWriter(t)

	path, err := w.SaveArchiveFile()
	if !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("expected ErrEmptyArchive, got %v", err)
	}
	if path != "" {
		t.Errorf("expected no path, got %s", path)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("no archive or working directory should remain, found %v", entries)
	}
}

func TestWriter_SingleUse(t *testing.T) {
	w, _ := newTestWriter(t)
	if err := w.SaveTable("users", "u"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.SaveArchiveFile(); err != nil {
		t.Fatal(err)
	}

	if err := w.SaveTable("users", "u"); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("SaveTable after packaging: expected ErrWriterClosed, got %v", err)
	}
	if err := w.SaveMetaDescription(Metadata{}); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("SaveMetaDescription after packaging: expected ErrWriterClosed, got %v", err)
	}
	if _, err := w.SaveArchiveFile(); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("second SaveArchiveFile: expected ErrWriterClosed, got %v", err)
	}
}

func TestWriter_Discard(t *testing.T) {
	w, root := newTestWriter(t)
	if err := w.SaveTable("users", "u"); err != nil {
		t.Fatal(err)
	}
	w.Discard()

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("Discard should leave the root empty, found %v", entries)
	}
}
