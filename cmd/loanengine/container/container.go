package container

import (
	"context"
	"time"

	"github.com/loandesk/loanengine/cmd/loanengine/repository"
	"github.com/loandesk/loanengine/cmd/loanengine/service"
	"github.com/loandesk/loanengine/common/bootstrap"
	"github.com/loandesk/loanengine/common/cache"
	rediscommon "github.com/loandesk/loanengine/common/redis"
	"github.com/redis/go-redis/v9"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client

	// Repositories
	AssetRepo       *repository.AssetRepository
	LoanRepo        *repository.LoanRepository
	ReservationRepo *repository.ReservationRepository
	LedgerRepo      *repository.LedgerRepository

	// Services
	AssetService     *service.AssetService
	LifecycleService *service.LifecycleService
	CalendarService  *service.CalendarService
	HistoryService   *service.HistoryService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	// Calendar caching is optional; with it disabled the calendar reads
	// straight from the database on every request.
	var redisClient *rediscommon.Client
	var viewCache service.ViewCache
	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "memory":
			viewCache = memoryViewCache{cache: components.Cache}
		default:
			raw := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			redisClient = rediscommon.NewClient(raw, components.Logger)
			viewCache = redisClient
		}
	}

	// Initialize repositories
	assetRepo := repository.NewAssetRepository(components.DB)
	loanRepo := repository.NewLoanRepository(components.DB)
	reservationRepo := repository.NewReservationRepository(components.DB)
	ledgerRepo := repository.NewLedgerRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	calendarService := service.NewCalendarService(
		loanRepo,
		reservationRepo,
		viewCache,
		cfg.Cache.DefaultTTL,
		components.Logger,
	)
	historyService := service.NewHistoryService(ledgerRepo, components.Logger)
	assetService := service.NewAssetService(assetRepo, loanRepo, components.Logger)

	lifecycleService := service.NewLifecycleService(&service.LifecycleServiceOpts{
		Tx:           components.DB,
		Assets:       assetRepo,
		Loans:        loanRepo,
		Reservations: reservationRepo,
		Ledger:       ledgerRepo,
		Policy:       service.NewPolicyEvaluator(cfg.Booking.PolicyExpr),
		Publisher:    components.Queue,
		Calendar:     calendarService,
		Logger:       components.Logger,
		GraceDays:    cfg.Booking.GraceDays,
	})

	return &Container{
		Components:       components,
		Redis:            redisClient,
		AssetRepo:        assetRepo,
		LoanRepo:         loanRepo,
		ReservationRepo:  reservationRepo,
		LedgerRepo:       ledgerRepo,
		AssetService:     assetService,
		LifecycleService: lifecycleService,
		CalendarService:  calendarService,
		HistoryService:   historyService,
	}, nil
}

// Close releases container-owned resources not managed by bootstrap
func (c *Container) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}

// memoryViewCache adapts the bootstrap in-memory cache to the calendar
// view cache surface, for single-process deployments without Redis.
type memoryViewCache struct {
	cache cache.Cache
}

func (m memoryViewCache) Get(ctx context.Context, key string) (string, error) {
	value, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", rediscommon.ErrNotFound
	}
	return string(value), nil
}

func (m memoryViewCache) SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error {
	return m.cache.Set(ctx, key, []byte(value), expiry)
}

func (m memoryViewCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := m.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
