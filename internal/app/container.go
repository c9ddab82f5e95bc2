package app

import (
	"context"

	"waworker/internal/app/config"
	"waworker/internal/connection"
	"waworker/internal/edge"
	"waworker/internal/http/handlers"
	"waworker/internal/inbound"
	"waworker/internal/journal"
	"waworker/internal/lock"
	"waworker/internal/manager"
	"waworker/pkg/logger"
)

// Container wires together every long-lived component the worker needs:
// the edge client, lock coordinator, diagnostics journal, instance manager,
// and the liveness HTTP handler.
type Container struct {
	Config *config.Config
	Logger logger.Logger

	EdgeClient *edge.Client
	Journal    *journal.Journal
	Locks      *lock.Coordinator
	Manager    *manager.InstanceManager

	HealthHandler *handlers.HealthHandler
}

// NewContainer builds a Container from cfg. j may be nil (journal disabled).
func NewContainer(ctx context.Context, cfg *config.Config, j *journal.Journal, log logger.Logger) *Container {
	c := &Container{
		Config: cfg,
		Logger: log.WithComponent("di-container"),
		Journal: j,
	}

	connection.BadMacWindow = cfg.BadMac.Window
	connection.BadMacThreshold = cfg.BadMac.Threshold
	connection.BadMacCooldown = cfg.BadMac.Cooldown
	inbound.ContactResolveErrorCooldown = cfg.ContactCache.ErrorCooldown
	inbound.ContactResolveDuplicateCooldown = cfg.ContactCache.DuplicateCooldown

	c.EdgeClient = edge.New(cfg.Edge.BaseURL, cfg.Edge.WorkerSecret, cfg.Edge.HTTPTimeout, log)

	c.Manager = manager.New(c.EdgeClient, cfg.Paths.AuthBase, nil, j, manager.Config{
		PollInterval:      cfg.Discovery.PollInterval,
		FallbackMaxActive: cfg.Discovery.FallbackMaxActive,
		LockTTL:           cfg.Lock.TTL,
		LockRenewEvery:    cfg.Lock.RenewEvery,
		StopCooldown:      cfg.Shutdown.StopCooldown,
		ListEligibleLimit: cfg.Discovery.ListEligibleLimit,
	}, log)

	c.Locks = lock.New(c.EdgeClient, cfg.ProcessOwnerID, c.Manager.OnLockLost, log)
	c.Manager.SetLocks(c.Locks)

	c.HealthHandler = handlers.NewHealthHandler()

	c.Logger.Info().Msg("container initialized")
	return c
}

// Start launches the instance manager's discovery cycle.
func (c *Container) Start(ctx context.Context) {
	c.Manager.Start(ctx)
}

// Shutdown stops the instance manager (which stops every runtime and
// releases every lock) and closes the journal, bounded by ctx's deadline.
func (c *Container) Shutdown(ctx context.Context) {
	c.Manager.Shutdown(ctx)
	if err := c.Journal.Close(); err != nil {
		c.Logger.WithError(err).Error().Msg("failed to close journal")
	}
}
