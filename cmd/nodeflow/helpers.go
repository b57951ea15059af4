package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"nodeflow/internal/format"
	"nodeflow/internal/store"
	"nodeflow/internal/wiring"
)

// resolveDBPath returns the store path from the flag, falling back to
// $NODEFLOW_DB. Returns "" if neither is set.
func resolveDBPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("NODEFLOW_DB")
}

// resolveLogLevel returns the level name from the flag, then
// $NODEFLOW_LOG_LEVEL, then "warn" so reports stay readable.
func resolveLogLevel(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("NODEFLOW_LOG_LEVEL"); env != "" {
		return env
	}
	return "warn"
}

// openEngine builds the engine, attaching the SQLite store when a DB path
// is configured. needStore turns a missing path into an error.
func openEngine(ctx context.Context, needStore bool) (*wiring.Engine, error) {
	var opts []wiring.Option
	path := resolveDBPath(rootFlags.dbPath)
	switch {
	case path != "":
		st, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		opts = append(opts, wiring.WithStore(st))
	case needStore:
		return nil, fmt.Errorf("%w: pass --db or set NODEFLOW_DB (e.g. %s)", wiring.ErrNoStore, store.DefaultDBPath)
	}
	return wiring.New(ctx, opts...)
}

// outputFormat resolves an --output value: JSON, or a table Mode.
func outputFormat(v string) (asJSON bool, mode format.Mode, err error) {
	if v == "json" {
		return true, format.ASCII, nil
	}
	mode, err = format.ParseMode(v)
	return false, mode, err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
