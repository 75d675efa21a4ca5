package bridge

import (
	"context"

	"github.com/wireapp/wire-desktop/internal/account"
	"github.com/wireapp/wire-desktop/internal/events"
)

// BadgeSink is the host tray or dock integration showing the aggregate
// unread count.
type BadgeSink interface {
	SetBadgeCount(total int)
}

// BadgeSinkFunc adapts a function to BadgeSink.
type BadgeSinkFunc func(total int)

func (f BadgeSinkFunc) SetBadgeCount(total int) { f(total) }

// RelayBadges pushes the current total of store to sink, then the total
// again after every aggregate change, until ctx ends. Bus events only wake
// the relay: the total is read from the store, so a dropped event is covered
// by the next one still queued.
func RelayBadges(ctx context.Context, bus *events.EventBus, store *account.Store, sink BadgeSink) {
	ch := bus.Subscribe(events.EventBadgeCountChanged)
	defer bus.Unsubscribe(events.EventBadgeCountChanged, ch)

	last := account.TotalBadgeCount(store.Snapshot())
	sink.SetBadgeCount(last)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if total := account.TotalBadgeCount(store.Snapshot()); total != last {
				last = total
				sink.SetBadgeCount(total)
			}
		}
	}
}
