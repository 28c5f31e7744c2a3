package workerpool

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Well-known pool names. The notification pool hosts dispatch orchestration,
// the gateway-send pool hosts the raw blocking SMS call, and the database
// pool hosts async database-bound work so a stall in one never starves the
// others.
const (
	PoolNotification = "notification"
	PoolGatewaySend  = "gateway-send"
	PoolDatabase     = "database"
)

// RegistryConfig carries the sizing for the three process pools plus the
// shutdown grace period shared by all of them.
type RegistryConfig struct {
	Notification  Config
	GatewaySend   Config
	Database      Config
	ShutdownGrace time.Duration
}

// DefaultRegistryConfig returns the default pool sizing. The notification
// and database pools use caller-runs so sustained overload pushes back on
// the submitter instead of dropping notifications; the gateway-send pool
// rejects outright because its callers already wait with a timeout and a
// queued send would only add latency to an already-slow gateway.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Notification: Config{
			Name:          PoolNotification,
			Core:          5,
			Max:           20,
			QueueCapacity: 200,
			Policy:        PolicyCallerRuns,
		},
		GatewaySend: Config{
			Name:          PoolGatewaySend,
			Core:          5,
			Max:           5,
			QueueCapacity: 10,
			Policy:        PolicyReject,
		},
		Database: Config{
			Name:          PoolDatabase,
			Core:          3,
			Max:           10,
			QueueCapacity: 100,
			Policy:        PolicyCallerRuns,
		},
		ShutdownGrace: 30 * time.Second,
	}
}

// Registry owns the process-wide pools. It is built once at startup and the
// pools live for the process lifetime; components borrow pool handles but
// never create or destroy them.
type Registry struct {
	pools map[string]*Pool
	grace time.Duration
}

// NewRegistry validates the configuration and starts all pools. A bad pool
// configuration fails startup rather than surfacing later under load.
func NewRegistry(cfg RegistryConfig, logger zerolog.Logger) (*Registry, error) {
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}

	r := &Registry{
		pools: make(map[string]*Pool, 3),
		grace: cfg.ShutdownGrace,
	}
	for _, pc := range []Config{cfg.Notification, cfg.GatewaySend, cfg.Database} {
		pool, err := New(pc, logger)
		if err != nil {
			// Stop pools that already started before reporting the error.
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = r.Shutdown(ctx)
			cancel()
			return nil, err
		}
		r.pools[pc.Name] = pool
	}
	return r, nil
}

// Pool returns the named pool.
func (r *Registry) Pool(name string) (*Pool, error) {
	p, ok := r.pools[name]
	if !ok {
		return nil, fmt.Errorf("workerpool: unknown pool %q", name)
	}
	return p, nil
}

// MustPool is Pool for the well-known names wired at startup, where a miss
// is a programming error.
func (r *Registry) MustPool(name string) *Pool {
	p, err := r.Pool(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Shutdown drains every pool within the registry grace period. The parent
// ctx can impose a shorter deadline.
func (r *Registry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.grace)
	defer cancel()

	var firstErr error
	for _, p := range r.pools {
		if err := p.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
