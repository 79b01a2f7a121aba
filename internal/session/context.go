package session

import (
	"context"
	"time"
)

type storeContextKey struct{}

// ContextWithStore stores the request's session store in context.
func ContextWithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, store)
}

// FromContext extracts the session store from context.
func FromContext(ctx context.Context) *Store {
	store, _ := ctx.Value(storeContextKey{}).(*Store)
	return store
}

// SnapshotFromContext returns the current snapshot, or an anonymous one when
// no store is bound to the request.
func SnapshotFromContext(ctx context.Context) Snapshot {
	if store := FromContext(ctx); store != nil {
		return store.Snapshot()
	}
	return Snapshot{Status: StatusAnonymous}
}

// AwaitSnapshot reads the snapshot of store, waiting up to wait while it is
// still loading. A nil store reads as anonymous.
func AwaitSnapshot(ctx context.Context, store *Store, wait time.Duration) Snapshot {
	if store == nil {
		return Snapshot{Status: StatusAnonymous}
	}
	if snap := store.Snapshot(); snap.Loaded() || wait <= 0 {
		return snap
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-store.Ready():
	case <-timer.C:
	case <-ctx.Done():
	}
	return store.Snapshot()
}
