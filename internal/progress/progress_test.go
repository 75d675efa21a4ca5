package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wireapp/wire-desktop/internal/events"
)

func TestCLIProgress_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgressWithOutput(&buf)

	p.Start(10, "Exporting")
	p.Update(5)
	p.SetDescription("messages")
	p.Finish()
	p.Error(errors.New("disk full"))

	out := buf.String()
	for _, want := range []string{"Exporting (10 rows)", "messages", "messages: done", "Error: disk full"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEventProgress_PublishesBackupEvents(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.SubscribeAll()

	p := NewEventProgress(bus, "a1", "export")
	p.Start(4, "conversations")
	p.Update(2)
	p.Finish()
	p.Error(errors.New("boom"))

	want := []struct {
		typ      events.EventType
		progress float64
	}{
		{events.EventBackupProgress, 0},
		{events.EventBackupProgress, 0.5},
		{events.EventBackupCompleted, 1},
		{events.EventBackupFailed, 1},
	}
	for i, w := range want {
		select {
		case ev := <-ch:
			be := ev.(*events.BackupEvent)
			if be.Type() != w.typ || be.Progress != w.progress || be.AccountID != "a1" || be.Operation != "export" {
				t.Errorf("event %d = %+v, want %s at %v", i, be, w.typ, w.progress)
			}
			if w.typ == events.EventBackupFailed && be.Error == nil {
				t.Error("failure event should carry the error")
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestPublishUI_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	ui := NewPublishUIWithOutput(&buf, 1000)

	ok := ui.AddBar("s3://archive")
	bad := ui.AddBar("azure://acct/backups")

	cb := ui.Callback()
	cb("s3://archive", 0.5)
	cb("unknown", 0.9)
	if ok.Current() != 500 {
		t.Errorf("expected 500 bytes, got %d", ok.Current())
	}

	ok.Complete("s3://archive/backup.tar.gz", nil)
	bad.Complete("", errors.New("forbidden"))
	ui.Wait()

	out := buf.String()
	if !strings.Contains(out, "✓ s3://archive/backup.tar.gz") || !strings.Contains(out, "✗ azure://acct/backups: forbidden") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
