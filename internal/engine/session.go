package engine

import (
	"context"
	"fmt"

	"github.com/ldenis/travel-logbook/internal/store"
)

// Session binds an owner identity to a live store subscription and feeds
// the inbound snapshots into the engine's collections.
type Session struct {
	engine *Engine
	sub    *store.Subscription
	done   chan struct{}
}

// OpenSession subscribes on the engine's store for the engine's owner and
// starts applying snapshots. The initial snapshots may not have been
// applied yet when OpenSession returns; the collections fill in as
// delivery proceeds.
func OpenSession(ctx context.Context, eng *Engine) (*Session, error) {
	sub, err := eng.store.Subscribe(ctx, eng.ownerID)
	if err != nil {
		return nil, fmt.Errorf("engine.OpenSession: %w", err)
	}

	s := &Session{engine: eng, sub: sub, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for snap := range sub.C {
			eng.applySnapshot(snap)
		}
	}()
	return s, nil
}

// Close ends the session. The ordering is a hard requirement: snapshot
// delivery is stopped and fully drained first, and only then are the
// in-memory collections cleared, so a late snapshot can never repopulate
// a closed session.
func (s *Session) Close() {
	s.sub.Close()
	<-s.done
	s.engine.clear()
}
