package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/intake"
	"github.com/Zachkp/portfolio/internal/mailer"
	"github.com/Zachkp/portfolio/internal/submission"
)

type server struct {
	cfg     *config.Config
	intake  *intake.Service
	admin   *adminAuth
	metrics http.Handler
	log     zerolog.Logger
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load configuration")
	}

	logger, logFile, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to init logger")
	}
	defer logFile.Close()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	store, err := submission.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Str("path", cfg.Storage.Path).Msg("unable to open submission store")
	}
	defer store.Close()

	var sender mailer.Sender
	if cfg.Mail.Configured() {
		sender = mailer.NewSMTPSender(cfg.Mail)
	} else {
		logger.Warn().Msg("SMTP credentials not configured, contact submissions will be rejected")
	}

	srv, err := newServer(cfg, store, sender, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to init server")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("store", cfg.Storage.Driver).Msg("server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func newServer(cfg *config.Config, store submission.Store, sender mailer.Sender, reg *prometheus.Registry, logger zerolog.Logger) (*server, error) {
	admin, err := newAdminAuth(cfg.Admin, cfg.Server.Mode, logger)
	if err != nil {
		return nil, err
	}

	svc := intake.NewService(intake.ServiceOptions{
		Store:         store,
		Sender:        sender,
		Recipient:     cfg.Mail.Recipient(),
		SubjectPrefix: cfg.Mail.SubjectPrefix,
		SendTimeout:   cfg.Mail.Timeout,
		Logger:        logger,
		Metrics:       intake.NewMetrics(reg),
	})

	return &server{
		cfg:     cfg,
		intake:  svc,
		admin:   admin,
		metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		log:     logger.With().Str("component", "http").Logger(),
	}, nil
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log, s.admin))

	if len(s.cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.Server.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.Default())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics))

	// Contact form endpoint; /api/send-email is the path older frontends post to
	r.POST("/api/send-email", s.handleContact)
	r.POST("/api/contact", s.handleContact)

	r.GET("/api/generate-resume", s.handleResume)

	setupAdminRoutes(r, s)
	return r
}

func (s *server) handleContact(c *gin.Context) {
	var in intake.Input
	if err := c.ShouldBind(&in); err != nil {
		s.log.Debug().Err(err).Msg("unreadable contact payload")
		status, res := intake.Respond(&intake.ValidationError{Reason: intake.ReasonMissingFields})
		c.JSON(status, res)
		return
	}

	_, err := s.intake.Submit(c.Request.Context(), in)
	status, res := intake.Respond(err)
	c.JSON(status, res)
}

func (s *server) handleListSubmissions(c *gin.Context) {
	subs, err := s.intake.List(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("unable to list submissions")
		status, res := intake.Respond(err)
		c.JSON(status, res)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (s *server) handleResume(c *gin.Context) {
	path := s.cfg.Server.ResumePath
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		s.log.Error().Err(err).Str("path", path).Msg("resume not available")
		c.String(http.StatusInternalServerError, "Failed to download resume")
		return
	}
	c.FileAttachment(path, "AI_Resume.pdf")
}

func requestLogger(logger zerolog.Logger, admin *adminAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client", admin.hashIP(c.ClientIP())).
			Msg("request")
	}
}
