package app

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/handlers"
	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/services/attachments"
	"github.com/ternarybob/reclaim/internal/services/browser"
	"github.com/ternarybob/reclaim/internal/services/events"
	"github.com/ternarybob/reclaim/internal/services/jobs"
	"github.com/ternarybob/reclaim/internal/services/notify"
	"github.com/ternarybob/reclaim/internal/services/verify"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Core services
	EventService       interfaces.EventService
	SessionFactory     interfaces.SessionFactory
	AttachmentResolver interfaces.AttachmentResolver
	Notifier           interfaces.StatusNotifier

	// Job pipeline
	JobStore   *jobs.Store
	JobQueue   *jobs.Queue
	JobService *jobs.Service
	WorkerPool *jobs.Pool
	Janitor    *jobs.Janitor

	// Synchronous booking verification
	VerifyService *verify.Service

	// HTTP handlers
	ClaimHandler  *handlers.ClaimHandler
	VerifyHandler *handlers.VerifyHandler
	JobHandler    *handlers.JobHandler
	StatusHandler *handlers.StatusHandler
	WSHandler     *handlers.WebSocketHandler
}

// New wires the application from config. Everything is injected explicitly;
// there is no package-global state beyond the logger.
func New(cfg *common.Config, logger arbor.ILogger) *App {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	a.EventService = events.NewService(logger)
	a.SessionFactory = browser.NewFactory(cfg.Automation, logger)
	a.AttachmentResolver = attachments.NewResolver(cfg, logger)
	notifier := notify.NewNotifier(cfg, logger)
	a.Notifier = notifier

	a.JobStore = jobs.NewStore()
	a.JobQueue = jobs.NewQueue(cfg.Queue.Depth)
	a.JobService = jobs.NewService(a.JobStore, a.JobQueue, a.EventService, logger)
	a.WorkerPool = jobs.NewPool(cfg, a.JobStore, a.JobQueue, a.SessionFactory,
		a.AttachmentResolver, a.Notifier, a.EventService, logger)
	a.Janitor = jobs.NewJanitor(cfg, a.JobStore, logger)

	a.VerifyService = verify.NewService(cfg, a.SessionFactory, notifier, logger)

	a.ClaimHandler = handlers.NewClaimHandler(a.JobService, logger)
	a.VerifyHandler = handlers.NewVerifyHandler(a.VerifyService, logger)
	a.JobHandler = handlers.NewJobHandler(a.JobService, cfg, logger)
	a.StatusHandler = handlers.NewStatusHandler(cfg, a.JobService, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger)

	return a
}

// Start brings the background machinery up
func (a *App) Start() error {
	a.WorkerPool.Start()
	if err := a.Janitor.Start(); err != nil {
		return err
	}
	return nil
}

// Close shuts down in dependency order: no new work, drain workers, then
// the fan-out layers.
func (a *App) Close() {
	a.Janitor.Stop()
	a.WorkerPool.Stop()
	a.WSHandler.Close()
	a.EventService.Close()
}
