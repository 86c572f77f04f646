package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shinyyama/rental-backend/internal/config"
	"github.com/shinyyama/rental-backend/internal/handler"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/live"
	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	appmw "github.com/shinyyama/rental-backend/internal/middleware"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Verifier appmw.TokenVerifier
	Profiles inbox.ProfileLookup
	Bus      live.Bus
	Uploader storage.Uploader
}

type Server struct {
	e      *echo.Echo
	repos  []interface{ SetDB(*gorm.DB) }
	logger *zap.Logger
	sha    string
	build  string
}

// New wires every route. Repositories start without a database and answer
// ErrDBNotReady until SetDB is called, so the server can listen while the
// connection is still being established.
func New(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := logging.OrNop(d.Logger)
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}
	bus := d.Bus
	if bus == nil {
		bus = live.NewHub(cfg.LiveBuffer, logger, m)
	}
	uploader := d.Uploader
	if uploader == nil {
		uploader = storage.NewGCS(nil, "")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin,
	}))

	itemRepo := repository.NewItemRepository(nil)
	msgRepo := repository.NewMessageRepository(nil)
	rentalRepo := repository.NewRentalRepository(nil)
	notifRepo := repository.NewNotificationRepository(nil)
	likeRepo := repository.NewLikedItemRepository(nil)

	timeout := cfg.RequestTimeout
	notifSvc := service.NewNotificationService(notifRepo, logger, timeout)
	itemSvc := service.NewItemService(itemRepo, uploader, timeout)
	msgSvc := service.NewMessageService(service.MessageDeps{
		Messages:      msgRepo,
		Items:         itemRepo,
		Bus:           bus,
		Notifications: notifSvc,
		Metrics:       m,
		Logger:        logger,
		Timeout:       timeout,
	})
	inboxSvc := service.NewInboxService(msgSvc, d.Profiles, m, logger, timeout, nil)
	rentalSvc := service.NewRentalService(service.RentalDeps{
		Rentals:       rentalRepo,
		Items:         itemRepo,
		Uploader:      uploader,
		Notifications: notifSvc,
		Logger:        logger,
		Timeout:       timeout,
	})
	likeSvc := service.NewLikeService(likeRepo, itemRepo, timeout)

	itemHandler := handler.NewItemHandler(itemSvc)
	msgHandler := handler.NewMessageHandler(msgSvc, inboxSvc)
	liveHandler := handler.NewLiveHandler(msgSvc, bus, m, logger, cfg.LivePollInterval, cfg.LiveBuffer)
	rentalHandler := handler.NewRentalHandler(rentalSvc, itemSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc)
	likeHandler := handler.NewLikeHandler(likeSvc)

	requireAuth := authUnavailable
	if d.Verifier != nil {
		requireAuth = appmw.NewAuthMiddleware(d.Verifier).RequireAuth
	} else {
		logger.Warn("no token verifier configured; authenticated routes will answer 503")
	}
	limiter := appmw.NewSendLimiter(cfg.SendRPS, cfg.SendBurst)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    cfg.GitSHA,
			"build_time": cfg.BuildTime,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.GET("/items", itemHandler.List)
	api.GET("/items/:id", itemHandler.Get)
	api.GET("/items/:id/messages", msgHandler.Thread, requireAuth)
	api.POST("/items/:id/quote", rentalHandler.Quote)

	api.POST("/items", itemHandler.Create, requireAuth)
	api.GET("/inbox", msgHandler.Inbox, requireAuth)
	api.POST("/items/:id/messages", msgHandler.Send, requireAuth, limiter.Limit)
	api.POST("/items/:id/read", msgHandler.MarkRead, requireAuth)
	api.GET("/items/:id/live", liveHandler.Watch, requireAuth)
	api.POST("/items/:id/rentals", rentalHandler.Submit, requireAuth)
	api.GET("/me/rentals", rentalHandler.ListMine, requireAuth)
	api.GET("/me/rental-requests", rentalHandler.ListIncoming, requireAuth)
	api.POST("/rentals/:id/status", rentalHandler.UpdateStatus, requireAuth)
	api.GET("/items/:id/like", likeHandler.Status, requireAuth)
	api.POST("/items/:id/like", likeHandler.Like, requireAuth)
	api.DELETE("/items/:id/like", likeHandler.Unlike, requireAuth)
	api.GET("/me/likes", likeHandler.List, requireAuth)
	api.GET("/notifications", notifHandler.List, requireAuth)
	api.POST("/notifications/read", notifHandler.MarkAllRead, requireAuth)
	if d.Profiles != nil {
		api.GET("/users/:uid/public", handler.NewUserHandler(d.Profiles).GetPublic)
	}

	return &Server{
		e:      e,
		repos:  []interface{ SetDB(*gorm.DB) }{itemRepo, msgRepo, rentalRepo, notifRepo, likeRepo},
		logger: logger,
		sha:    cfg.GitSHA,
		build:  cfg.BuildTime,
	}
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting server", zap.String("addr", addr), zap.String("git_sha", s.sha), zap.String("build_time", s.build))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) SetDB(db *gorm.DB) {
	for _, r := range s.repos {
		r.SetDB(db)
	}
}

// ServeHTTP exposes the router for in-process tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func authUnavailable(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusServiceUnavailable, handler.NewErrorResponse("auth_unavailable", "authentication is not configured"))
	}
}

func allowOrigin(origin string) (bool, error) {
	low := strings.ToLower(origin)
	if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
		strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
		return true, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false, nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, nil
	}
	return strings.HasSuffix(u.Hostname(), "vercel.app"), nil
}
