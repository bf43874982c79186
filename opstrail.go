// Package opstrail assembles the progress core for host applications:
// catalog loading, storage backend selection, the progress ledger store,
// derived metrics, schedule projection, certificates and the overview read
// model, behind a single constructor. The internal packages are not
// importable from other modules, so everything a host needs is re-exported
// here.
package opstrail

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opstrail/opstrail-core/internal/catalog"
	"github.com/opstrail/opstrail-core/internal/config"
	"github.com/opstrail/opstrail-core/internal/database"
	"github.com/opstrail/opstrail-core/internal/dto"
	"github.com/opstrail/opstrail-core/internal/models"
	"github.com/opstrail/opstrail-core/internal/repository"
	"github.com/opstrail/opstrail-core/internal/service"
)

// Storage driver names accepted in configuration.
const (
	DriverSQLite   = config.DriverSQLite
	DriverPostgres = config.DriverPostgres
	DriverRedis    = config.DriverRedis
)

// Boundary types re-exported for hosts.
type (
	Config             = config.Config
	Catalog            = catalog.Catalog
	SubtopicRef        = catalog.SubtopicRef
	UserProgress       = models.UserProgress
	Schedule           = models.Schedule
	Certificate        = models.Certificate
	ProgressOverview   = dto.ProgressOverview
	DocumentRepository = repository.DocumentRepository
	ProgressStore      = service.ProgressStore
	MetricsEngine      = service.MetricsEngine
	ScheduleProjector  = service.ScheduleProjector
	CertificateService = service.CertificateService
	OverviewService    = service.OverviewService
	Scope              = service.Scope
	ChangeEvent        = service.ChangeEvent
	ChangeKind         = service.ChangeKind
)

// Sentinel errors re-exported for errors.Is checks at the host boundary.
var (
	ErrNotFound          = repository.ErrNotFound
	ErrNotEligible       = service.ErrNotEligible
	ErrInvalidSchedule   = service.ErrInvalidSchedule
	ErrInvalidUserName   = service.ErrInvalidUserName
	ErrLedgerUnavailable = service.ErrLedgerUnavailable
)

// LoadConfig reads configuration from the environment and an optional
// .env file.
func LoadConfig() (Config, error) {
	return config.Load()
}

// LoadCatalog reads and validates a roadmap definition from disk.
func LoadCatalog(path string) (*Catalog, error) {
	return catalog.Load(path)
}

// Core is the fully wired progress engine. All fields are ready to use
// after New returns.
type Core struct {
	Config       Config
	Catalog      *Catalog
	Store        ProgressStore
	Metrics      *MetricsEngine
	Projector    *ScheduleProjector
	Certificates CertificateService
	Overview     OverviewService
}

// New wires the core for the configured storage driver: the catalog from
// disk, the document repository over sqlite, postgres or redis, and the
// services on top. The host owns the logger and the lifetime of the
// returned core.
func New(cfg Config, logger zerolog.Logger) (*Core, error) {
	c, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	repo, cache, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := service.NewProgressStore(repo, cfg.RoadmapID, validate, logger)
	metrics := service.NewMetricsEngine(c)
	projector := service.NewScheduleProjector(c)
	certificates := service.NewCertificateService(c, metrics, logger)
	overview := service.NewOverviewService(store, c, metrics, projector, cache, cfg.OverviewCacheTTL, logger)

	return &Core{
		Config:       cfg,
		Catalog:      c,
		Store:        store,
		Metrics:      metrics,
		Projector:    projector,
		Certificates: certificates,
		Overview:     overview,
	}, nil
}

// NewFromEnv is New over LoadConfig.
func NewFromEnv(logger zerolog.Logger) (*Core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(cfg, logger)
}

// openStorage selects the document backend. A configured redis connection
// doubles as the overview cache regardless of the document driver.
func openStorage(cfg Config) (DocumentRepository, *redis.Client, error) {
	var cache *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cache = client
	}

	switch cfg.StorageDriver {
	case config.DriverRedis:
		if cache == nil {
			return nil, nil, fmt.Errorf("redis url must be provided for the redis driver")
		}
		return repository.NewRedisDocumentRepository(cache), cache, nil
	case config.DriverSQLite:
		db, err := database.ConnectSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return migratedRepository(db, cache)
	case config.DriverPostgres:
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return migratedRepository(db, cache)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func migratedRepository(db *gorm.DB, cache *redis.Client) (DocumentRepository, *redis.Client, error) {
	if err := db.AutoMigrate(&models.ProgressDocument{}); err != nil {
		return nil, nil, fmt.Errorf("migrate document store: %w", err)
	}
	return repository.NewDocumentRepository(db), cache, nil
}
