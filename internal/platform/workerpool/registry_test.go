package workerpool

import (
	"context"
	"testing"
	"time"
)

func TestDefaultRegistryConfig(t *testing.T) {
	cfg := DefaultRegistryConfig()

	if cfg.Notification.Core != 5 || cfg.Notification.Max != 20 || cfg.Notification.QueueCapacity != 200 {
		t.Errorf("notification sizing = %d/%d/%d, want 5/20/200",
			cfg.Notification.Core, cfg.Notification.Max, cfg.Notification.QueueCapacity)
	}
	if cfg.Notification.Policy != PolicyCallerRuns {
		t.Errorf("notification policy = %v, want caller-runs", cfg.Notification.Policy)
	}
	if cfg.GatewaySend.Core != 5 || cfg.GatewaySend.Max != 5 {
		t.Errorf("gateway-send sizing = %d/%d, want 5/5", cfg.GatewaySend.Core, cfg.GatewaySend.Max)
	}
	if cfg.GatewaySend.Policy != PolicyReject {
		t.Errorf("gateway-send policy = %v, want reject", cfg.GatewaySend.Policy)
	}
	if cfg.Database.Core != 3 || cfg.Database.Max != 10 || cfg.Database.QueueCapacity != 100 {
		t.Errorf("database sizing = %d/%d/%d, want 3/10/100",
			cfg.Database.Core, cfg.Database.Max, cfg.Database.QueueCapacity)
	}
	if cfg.ShutdownGrace != 30*time.Second {
		t.Errorf("shutdown grace = %v, want 30s", cfg.ShutdownGrace)
	}
}

func TestRegistry_PoolLookup(t *testing.T) {
	r, err := NewRegistry(DefaultRegistryConfig(), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Shutdown(context.Background())

	for _, name := range []string{PoolNotification, PoolGatewaySend, PoolDatabase} {
		p, err := r.Pool(name)
		if err != nil {
			t.Errorf("Pool(%q) error = %v", name, err)
			continue
		}
		if p.Name() != name {
			t.Errorf("Pool(%q).Name() = %q", name, p.Name())
		}
	}

	if _, err := r.Pool("bogus"); err == nil {
		t.Error("expected error for unknown pool name, got nil")
	}
}

func TestNewRegistry_InvalidSizingFailsFast(t *testing.T) {
	cfg := DefaultRegistryConfig()
	cfg.Notification.Core = 0
	if _, err := NewRegistry(cfg, testLogger()); err == nil {
		t.Fatal("expected error for invalid pool sizing, got nil")
	}
}

func TestRegistry_ShutdownDrainsAllPools(t *testing.T) {
	r, err := NewRegistry(DefaultRegistryConfig(), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	if err := r.MustPool(PoolNotification).Submit(func() { close(done) }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("queued task was not executed before shutdown returned")
	}

	if err := r.MustPool(PoolNotification).Submit(func() {}); err != ErrShutdown {
		t.Errorf("Submit() after shutdown: error = %v, want ErrShutdown", err)
	}
}
