package events

import (
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventBadgeCountChanged)

	bus.Publish(&BadgeCountChangedEvent{
		BaseEvent: NewBase(EventBadgeCountChanged),
		Total:     7,
		Previous:  3,
	})

	select {
	case received := <-ch:
		badge, ok := received.(*BadgeCountChangedEvent)
		if !ok {
			t.Fatal("Expected BadgeCountChangedEvent")
		}
		if badge.Total != 7 {
			t.Errorf("Expected total 7, got %d", badge.Total)
		}
		if badge.Previous != 3 {
			t.Errorf("Expected previous 3, got %d", badge.Previous)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventAccountsChanged)
	ch2 := bus.Subscribe(EventAccountsChanged)

	bus.Publish(&AccountsChangedEvent{
		BaseEvent:    NewBase(EventAccountsChanged),
		Action:       "SwitchAccount",
		AccountCount: 2,
	})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d did not receive the event", i)
		}
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	backupCh := bus.Subscribe(EventBackupProgress)
	logCh := bus.Subscribe(EventLog)

	bus.PublishBackup(EventBackupProgress, "acc-1", "export", "tables", 0.5)

	select {
	case event := <-backupCh:
		backup, ok := event.(*BackupEvent)
		if !ok {
			t.Fatal("Expected BackupEvent")
		}
		if backup.Progress != 0.5 || backup.AccountID != "acc-1" {
			t.Errorf("unexpected backup event: %+v", backup)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Backup subscriber didn't receive event")
	}

	select {
	case <-logCh:
		t.Error("Log subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
		// Expected - timeout means no event
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.Publish(&AccountsChangedEvent{BaseEvent: NewBase(EventAccountsChanged)})
	bus.PublishLog(InfoLevel, "hello", "test", nil)

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2) // Small buffer
	defer bus.Close()

	ch := bus.Subscribe(EventBadgeCountChanged)

	for i := 0; i < 10; i++ {
		bus.Publish(&BadgeCountChangedEvent{BaseEvent: NewBase(EventBadgeCountChanged), Total: i})
	}

	// Excess events are dropped rather than blocking the publisher
	if dropped := bus.GetDroppedEventCount(); dropped != 8 {
		t.Errorf("Expected 8 dropped events, got %d", dropped)
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("Expected 2 buffered events, got %d", count)
	}
	if prev := bus.ResetDroppedEventCount(); prev != 8 {
		t.Errorf("Expected reset to return 8, got %d", prev)
	}
	if bus.GetDroppedEventCount() != 0 {
		t.Error("Dropped count should be zero after reset")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventContextMenu)
	bus.Unsubscribe(EventContextMenu, ch)

	bus.Publish(&ContextMenuEvent{BaseEvent: NewBase(EventContextMenu), Visible: true})

	select {
	case <-ch:
		t.Error("Unsubscribed channel received an event")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventAccountsChanged)

	bus.Close()

	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.Publish(&AccountsChangedEvent{BaseEvent: NewBase(EventAccountsChanged)})

	// Subscribing after close returns a closed channel
	if _, ok := <-bus.Subscribe(EventLog); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}
