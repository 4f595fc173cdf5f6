package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/config"
	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/internal/infra/cache"
	"github.com/totegamma/memorial/internal/infra/database"
	"github.com/totegamma/memorial/internal/infra/repository"
	"github.com/totegamma/memorial/internal/infra/storage"
	"github.com/totegamma/memorial/internal/infra/tracing"
	"github.com/totegamma/memorial/internal/present/rest"
	authmw "github.com/totegamma/memorial/internal/present/rest/middleware"
	"github.com/totegamma/memorial/internal/service"
	"github.com/totegamma/memorial/internal/usecase"
)

var version = "dev"

const (
	listCacheTTL  = 5 * time.Minute
	purgeInterval = time.Hour
)

func main() {
	conf, err := config.Load(config.Path())
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		shutdown, err := tracing.Setup(context.Background(), conf.Server.TraceEndpoint, version)
		if err != nil {
			slog.Error("failed to setup tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}

	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	blobs, err := storage.NewFileStore(conf.Server.RepositoryPath)
	if err != nil {
		panic("failed to open media repository")
	}

	site := domain.Config{
		FQDN:           conf.Site.FQDN,
		JWTSecret:      conf.Site.JWTSecret,
		AdminEmails:    conf.Site.AdminEmails,
		SignedURLTTL:   conf.Site.SignedURLTTL,
		MaxUploadBytes: conf.Site.MaxUploadBytes,
	}

	authService := service.NewAuthService(site)
	signalService := service.NewSignalService(rdb)
	lists := cache.NewListCache(mc, listCacheTTL)

	memories := usecase.NewRecordUsecase[memorial.Memory](
		memorial.CollectionMemories,
		repository.NewMemoryRepository(db),
		blobs,
		lists,
		signalService,
	)
	condolences := usecase.NewRecordUsecase[memorial.Condolence](
		memorial.CollectionCondolences,
		repository.NewCondolenceRepository(db),
		blobs,
		lists,
		signalService,
	)
	authUsecase := usecase.NewAuthUsecase(repository.NewUserRepository(db), authService, site)
	mediaUsecase := usecase.NewMediaUsecase(blobs, authService, site)

	handler := rest.NewHandler(site, memories, condolences, authUsecase, mediaUsecase, signalService)
	authMiddleware := authmw.NewAuthMiddleware(authService)

	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			n, err := repository.PurgeExpiredIdempotencyKeys(context.Background(), db)
			if err != nil {
				slog.Warn("failed to purge idempotency keys", slog.String("error", err.Error()), slog.String("module", "main"))
				continue
			}
			if n > 0 {
				slog.Info("purged idempotency keys", slog.Int64("count", n), slog.String("module", "main"))
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("memorial"))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(bodyLimit(site.MaxUploadBytes)))
	e.Use(authMiddleware.IdentifyIdentity)

	handler.RegisterRoutes(e)

	slog.Info("memorial started", slog.String("version", version), slog.String("listen", conf.Server.Listen))
	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

// bodyLimit leaves headroom over the media limit for the multipart envelope.
func bodyLimit(maxUpload int64) string {
	const headroom = 1 << 20
	return strconv.FormatInt((maxUpload+headroom)>>10, 10) + "K"
}
