package mcp

import (
	"context"
	"os"
	"time"

	"nodeflow/internal/logging"
)

// DefaultParentPoll is how often WatchParent checks the parent pid.
const DefaultParentPoll = 2 * time.Second

// getppid is swapped in tests.
var getppid = os.Getppid

// WatchParent calls cancelFn once the parent process is gone (the pid seen at
// start changes, normally to 1 after reparenting). It never touches stdin:
// the stdio transport owns it.
//
// The goroutine exits when ctx is canceled or the parent is gone.
func WatchParent(ctx context.Context, every time.Duration, cancelFn context.CancelFunc) {
	if every <= 0 {
		every = DefaultParentPoll
	}
	lookup := getppid
	ppid := lookup()
	log := logging.New("mcp")
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if now := lookup(); now != ppid {
					log.Warn("parent process exited, shutting down", "ppid", ppid, "now", now)
					cancelFn()
					return
				}
			}
		}
	}()
}
