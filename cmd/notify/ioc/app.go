// Package ioc wires the application object graph. Everything hangs off the
// App returned by InitApp; there is no package-level mutable state.
package ioc

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/api/web"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/pkg/idgen"
	"github.com/pitchdesk/notify/internal/pkg/loopjob"
	"github.com/pitchdesk/notify/internal/pkg/retry"
	"github.com/pitchdesk/notify/internal/queue"
	"github.com/pitchdesk/notify/internal/repository"
	"github.com/pitchdesk/notify/internal/repository/cache/local"
	redisCache "github.com/pitchdesk/notify/internal/repository/cache/redis"
	"github.com/pitchdesk/notify/internal/repository/dao"
	"github.com/pitchdesk/notify/internal/service/channel"
	"github.com/pitchdesk/notify/internal/service/health"
	"github.com/pitchdesk/notify/internal/service/intake"
	"github.com/pitchdesk/notify/internal/service/metrics"
	"github.com/pitchdesk/notify/internal/service/preference"
	"github.com/pitchdesk/notify/internal/service/realtime"
	"github.com/pitchdesk/notify/internal/service/retrysched"
	"github.com/pitchdesk/notify/internal/service/tracker"
	"github.com/pitchdesk/notify/internal/service/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const workerLockKey = "notify:lock:worker"

// App owns every long-lived component and their lifecycle.
type App struct {
	httpServer *http.Server
	workerLoop *loopjob.InfiniteLoop
	monitor    *health.Monitor
	metrics    *metrics.WorkerMetrics
	worker     *worker.Worker
	rdb        *redis.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *elog.Component
}

func InitApp() *App {
	db := InitDB()
	rdb := InitRedisClient()
	dclient := InitDistributedLock(rdb)

	notificationRepo := repository.NewNotificationRepository(dao.NewNotificationDAO(db))
	preferenceRepo := repository.NewPreferenceRepository(
		dao.NewPreferenceDAO(db),
		redisCache.NewPreferenceCache(rdb),
		local.NewPreferenceCache(),
	)
	deliveryRepo := repository.NewDeliveryRecordRepository(dao.NewDeliveryRecordDAO(db))
	contactRepo := repository.NewContactRepository(dao.NewContactDAO(db))

	gen := idgen.NewGenerator()
	store := queue.NewRedisStore(rdb)

	type RetryConfig struct {
		InitialInterval time.Duration `yaml:"initialInterval"`
		MaxInterval     time.Duration `yaml:"maxInterval"`
		MaxAttempts     int32         `yaml:"maxAttempts"`
	}
	retryCfg := RetryConfig{
		InitialInterval: 30 * time.Second,
		MaxInterval:     10 * time.Minute,
		MaxAttempts:     3,
	}
	if err := econf.UnmarshalKey("retry", &retryCfg); err != nil {
		panic(err)
	}
	backoff, err := retry.NewBackoff(retry.Config{
		InitialInterval: retryCfg.InitialInterval,
		MaxInterval:     retryCfg.MaxInterval,
		MaxAttempts:     retryCfg.MaxAttempts,
	})
	if err != nil {
		panic(err)
	}

	prefSvc := preference.NewService(preferenceRepo)
	trackerSvc := tracker.NewService(deliveryRepo, gen)
	intakeSvc := intake.NewService(
		notificationRepo,
		prefSvc,
		realtime.NewRedisGateway(rdb),
		store,
		trackerSvc,
		gen,
		retryCfg.MaxAttempts,
	)

	dispatcher := channel.NewDispatcher(map[domain.Channel]channel.Channel{
		domain.ChannelEmail: channel.NewEmailChannel(contactRepo, InitEmailClient()),
		domain.ChannelPush:  channel.NewPushChannel(contactRepo, InitPushClient()),
		domain.ChannelSMS:   channel.NewSMSChannel(contactRepo, InitSMSClient()),
	})

	workerMetrics := metrics.NewWorkerMetrics(prometheus.DefaultRegisterer)

	var workerCfg worker.Config
	if err := econf.UnmarshalKey("worker", &workerCfg); err != nil {
		panic(err)
	}
	w := worker.New(
		workerCfg,
		store,
		dispatcher,
		trackerSvc,
		retrysched.NewScheduler(store, backoff),
		retrysched.NewMover(store, workerCfg.BatchSize),
		workerMetrics,
	)

	monitor := health.NewMonitor(db, rdb, workerMetrics, econf.GetDuration("health.interval"))

	server := web.NewServer(intakeSvc, prefSvc, trackerSvc, monitor, workerMetrics, w.QueueDepths)
	engine := gin.New()
	engine.Use(gin.Recovery())
	server.RegisterRoutes(engine)

	addr := econf.GetString("server.http.addr")
	if addr == "" {
		addr = ":8080"
	}

	return &App{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
		workerLoop: loopjob.NewInfiniteLoop(dclient, w.Run, workerLockKey),
		monitor:    monitor,
		metrics:    workerMetrics,
		worker:     w,
		rdb:        rdb,
		logger:     elog.DefaultLogger.With(elog.String("component", "app")),
	}
}

// Start launches the HTTP listener and the background loops. It returns once
// everything is running; errors after startup surface through logs and the
// health endpoint.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		a.workerLoop.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		_ = a.monitor.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.mirrorLoop(ctx)
	}()

	go func() {
		err := a.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Panic("http listener failed", elog.FieldErr(err))
		}
	}()
	a.logger.Info("started", elog.String("addr", a.httpServer.Addr))
}

// Stop drains the HTTP server, cancels the loops and waits for them.
func (a *App) Stop(ctx context.Context) error {
	err := a.httpServer.Shutdown(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	return errors.Join(err, a.rdb.Close())
}

// mirrorLoop keeps the aggregate worker counters visible to other instances.
func (a *App) mirrorLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depths := a.worker.QueueDepths(ctx)
			if err := a.metrics.Mirror(ctx, a.rdb, depths); err != nil {
				a.logger.Warn("metrics mirror failed", elog.FieldErr(err))
			}
		}
	}
}
