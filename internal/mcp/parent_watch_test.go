package mcp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func fakeParent(t *testing.T, pid int) *atomic.Int64 {
	t.Helper()
	var cur atomic.Int64
	cur.Store(int64(pid))
	old := getppid
	getppid = func() int { return int(cur.Load()) }
	t.Cleanup(func() { getppid = old })
	return &cur
}

func TestWatchParent_CancelsWhenParentChanges(t *testing.T) {
	parent := fakeParent(t, 4242)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	WatchParent(ctx, 5*time.Millisecond, cancel)
	parent.Store(1)

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after the parent changed")
	}
}

func TestWatchParent_QuietWhileParentAlive(t *testing.T) {
	fakeParent(t, 4242)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Bool
	WatchParent(ctx, 5*time.Millisecond, func() { fired.Store(true) })

	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelFn called while the parent is alive")
	}
}
