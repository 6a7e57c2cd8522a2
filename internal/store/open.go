package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Options configures the startup backend selection.
type Options struct {
	DBType            string        // "sqlite" or "postgres"
	DSN               string        // file path for sqlite, connection string for postgres
	MaxConns          int           // connection pool bound
	ProbeTimeout      time.Duration // startup probe budget before falling back
	QueryTimeout      time.Duration // per-operation timeout on the durable backend
	AdminUsername     string        // seed admin username
	AdminPasswordHash string        // bcrypt digest for the seed admin
}

// Open selects the active backend for the process lifetime. It probes the
// durable backend within ProbeTimeout; on success it runs migrations and
// seeds, on any failure it falls back to a memory store seeded with the same
// catalog and admin account. There is no runtime failover afterwards: the
// probe decides once.
func Open(ctx context.Context, opts Options) (Store, error) {
	durable, err := openDurable(ctx, opts)
	if err == nil {
		slog.Info("durable backend selected", "type", opts.DBType)
		return durable, nil
	}

	slog.Warn("durable backend unavailable, falling back to in-memory store",
		"type", opts.DBType, "error", err)

	mem := NewMemoryStore()
	if err := seed(ctx, mem, opts.AdminUsername, opts.AdminPasswordHash); err != nil {
		return nil, fmt.Errorf("failed to seed fallback store: %w", err)
	}
	return mem, nil
}

// openDurable opens, probes, migrates and seeds the durable backend. Any
// failure along the way is reported to the caller as the fallback trigger.
func openDurable(ctx context.Context, opts Options) (Store, error) {
	s, err := openSQL(opts.DBType, opts.DSN, opts.MaxConns, opts.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
	defer cancel()
	if err := s.bun.PingContext(probeCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: probe failed: %v", ErrBackendUnavailable, err)
	}

	if err := runMigrations(opts.DBType, opts.DSN); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := seed(ctx, s, opts.AdminUsername, opts.AdminPasswordHash); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return s, nil
}

// seed inserts the fixed catalog when the plugin collection is empty and
// creates the admin account if it does not exist yet. It is idempotent and
// shared by both backends.
func seed(ctx context.Context, s Store, adminUsername, adminPasswordHash string) error {
	counts, err := s.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect store for seeding: %w", err)
	}

	if counts.Plugins == 0 {
		for _, p := range SeedCatalog() {
			if _, err := s.CreatePlugin(ctx, p); err != nil {
				return fmt.Errorf("failed to seed plugin %q: %w", p.Name, err)
			}
		}
		slog.Info("seeded plugin catalog", "plugins", len(SeedCatalog()))
	}

	admin, err := s.FindAdminByUsername(ctx, adminUsername)
	if err != nil {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if admin == nil {
		if _, err := s.CreateAdmin(ctx, adminUsername, adminPasswordHash); err != nil {
			return fmt.Errorf("failed to seed admin account: %w", err)
		}
		slog.Info("seeded admin account", "username", adminUsername)
	}

	return nil
}
