package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-print"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	auth "github.com/goliatone/go-exam-auth"
	"github.com/goliatone/go-exam-auth/activitymap"
	"github.com/goliatone/go-exam-auth/captcha"
	"github.com/goliatone/go-exam-auth/config"
	"github.com/goliatone/go-exam-auth/logging"
	"github.com/goliatone/go-exam-auth/mailer"
	"github.com/goliatone/go-exam-auth/metrics"
	"github.com/goliatone/go-exam-auth/ratelimit"
	"github.com/goliatone/go-exam-auth/storage"
	"github.com/goliatone/go-exam-auth/views"
)

type App struct {
	config  *config.Config
	logger  *logging.SlogLogger
	store   *storage.Store
	repo    auth.RepositoryManager
	metrics *metrics.Metrics
	flows   *auth.AuthFlows
	gate    *auth.SessionGate
	limiter fiber.Handler
	limits  fiber.Storage
	srv     *fiber.App
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	app := &App{
		config:  cfg,
		logger:  logging.New(cfg.LogLevel, os.Stderr),
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	if cfg.Debug {
		redacted := *cfg
		redacted.SigningKey = "****"
		redacted.CaptchaSecret = "****"
		redacted.SMTPPassword = "****"
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(redacted))
		fmt.Println("============")
	}

	ctx := context.Background()

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithAuth,
		WithRateLimit,
		WithHTTPServer,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			app.logger.Error("startup failed: %v", err)
			app.Close()
			os.Exit(1)
		}
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		app.logger.Info("listening on %s", addr)
		if err := app.srv.Listen(addr); err != nil {
			app.logger.Error("server stopped: %v", err)
		}
	}()

	WaitExitSignal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.srv.ShutdownWithContext(shutdownCtx); err != nil {
		app.logger.Error("shutdown: %v", err)
	}
	app.Close()
}

func WithPersistence(ctx context.Context, app *App) error {
	store, err := storage.Open(ctx, app.config.DatabaseURL)
	if err != nil {
		return err
	}
	app.store = store

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	app.repo = auth.NewRepositoryManager(store.DB)
	if err := app.repo.Validate(); err != nil {
		return err
	}

	if app.config.SeedQuestionsOnUp {
		n, err := store.SeedQuestions(ctx, app.repo.Questions())
		if err != nil {
			return err
		}
		app.logger.Info("question bank seeded with %d new questions", n)
	}
	return nil
}

func WithAuth(ctx context.Context, app *App) error {
	cfg := app.config

	tokens := auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		auth.WithTokenLogger(app.logger.With("component", "tokens")),
	)

	var transport mailer.Transport
	if cfg.SMTPEnabled() {
		transport = mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		app.logger.Warn("SMTP_HOST not set, emails are only logged")
		transport = mailer.NewLogTransport(app.logger.With("component", "mail"))
	}

	mail := mailer.New(
		views.New(auth.TemplateHelpers()),
		transport,
		mailer.WithLogger(app.logger.With("component", "mailer")),
	)

	var verifier auth.CaptchaVerifier
	if cfg.CaptchaEnabled() {
		verifier = captcha.New(cfg.CaptchaSecret,
			captcha.WithVerifyURL(cfg.CaptchaVerifyURL),
			captcha.WithLogger(app.logger.With("component", "captcha")),
		)
	} else {
		app.logger.Warn("SECRET_KEY_CAPTCHA not set, captcha checks are disabled")
	}

	flows, err := auth.NewAuthFlows(auth.FlowDependencies{
		Repo:    app.repo,
		Tokens:  tokens,
		Mailer:  mail,
		Captcha: verifier,
		Config:  cfg,
		Logger:  app.logger.With("component", "flows"),
		Activity: auth.MultiActivitySink{
			app.metrics,
			activitymap.LogSink(app.logger.With("component", "activity")),
		},
	})
	if err != nil {
		return err
	}
	app.flows = flows

	app.gate = auth.NewSessionGate(tokens, app.repo, cfg,
		auth.WithGateLogger(app.logger.With("component", "gate")),
		auth.WithGateObserver(app.metrics.ObserveGate),
	)
	return nil
}

func WithRateLimit(ctx context.Context, app *App) error {
	if app.config.RedisURL != "" {
		limits, err := ratelimit.NewRedisStorageFromURL(ctx, app.config.RedisURL)
		if err != nil {
			return err
		}
		app.limits = limits
	} else {
		app.limits = ratelimit.NewMemoryStorage(time.Minute)
	}

	app.limiter = ratelimit.New(ratelimit.Config{
		Max:     app.config.RateLimitMax,
		Window:  app.config.RateLimitWindow,
		Storage: app.limits,
		OnLimit: app.metrics.ObserveRateLimited,
	})
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := fiber.New(fiber.Config{
		AppName:      "exam-auth",
		Views:        views.New(auth.TemplateHelpers()),
		ErrorHandler: auth.ErrorLogger(app.logger.With("component", "http")),
	})

	srv.Use(recover.New())

	if len(app.config.AllowedOrigins) > 0 {
		srv.Use(adaptor.HTTPMiddleware(cors.New(cors.Options{
			AllowedOrigins:   app.config.AllowedOrigins,
			AllowedMethods:   []string{fiber.MethodGet, fiber.MethodPost},
			AllowCredentials: true,
		}).Handler))
	}

	srv.Use("/static", filesystem.New(filesystem.Config{
		Root: views.Static(),
	}))

	srv.Get("/healthz", func(c *fiber.Ctx) error {
		if err := app.store.DB.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	srv.Get("/metrics", adaptor.HTTPHandler(app.metrics.Handler()))

	auth.RegisterRoutes(srv,
		auth.WithFlows(app.flows),
		auth.WithGate(app.gate),
		auth.WithLimiter(app.limiter),
		auth.WithControllerLogger(app.logger.With("component", "controller")),
		auth.WithDebug(app.config.Debug),
		auth.WithViewData(fiber.Map{
			"captcha_site_key": app.config.CaptchaSiteKey,
		}),
	)

	app.srv = srv
	return nil
}

func (a *App) Close() {
	if a.limits != nil {
		if err := a.limits.Close(); err != nil {
			a.logger.Warn("closing rate limit storage: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing database: %v", err)
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return <-ch
}
