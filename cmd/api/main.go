package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"educbt.org/internal/auth"
	"educbt.org/internal/blob"
	"educbt.org/internal/blog"
	"educbt.org/internal/config"
	"educbt.org/internal/course"
	"educbt.org/internal/geo"
	"educbt.org/internal/httpapi"
	"educbt.org/internal/jobs"
	"educbt.org/internal/mail"
	"educbt.org/internal/migrate"
	"educbt.org/internal/obs"
	"educbt.org/internal/ratelimit"
	"educbt.org/internal/staff"
	"educbt.org/internal/store/memory"
	"educbt.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// stores is the persistence backing one process: Postgres when a database
// url is configured, otherwise the in-memory store.
type stores struct {
	auth    auth.Store
	blogs   blog.Store
	courses course.Store
	staff   staff.Store
	limiter ratelimit.Limiter
	sweeper jobs.Sweeper
	probe   httpapi.ReadyProbe
	close   func() error
}

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
		obs.SetLevel(level)
	}
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close() // nolint: errcheck

	authOpts := []auth.ServiceOption{
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithResetTTL(cfg.ResetTTL),
	}
	if mailer, err := mail.New(cfg.SMTP); err == nil {
		authOpts = append(authOpts, auth.WithMailer(mailer, cfg.AppURL))
	} else {
		log.Warn("password reset mail disabled", "error", err)
	}
	authSvc, err := auth.NewService(st.auth, authOpts...)
	if err != nil {
		return err
	}
	rbac, err := auth.NewRBACService(st.auth, cfg.BcryptCost)
	if err != nil {
		return err
	}

	var bucket blob.Bucket
	if cfg.S3.Bucket != "" {
		s3, err := blob.NewS3(ctx, cfg.S3)
		if err != nil {
			return err
		}
		bucket = s3
	} else {
		log.Warn("S3 bucket not configured, using in-memory object storage")
		bucket = blob.NewMemory(cfg.AppURL + "/files")
	}

	geoDB := geo.Empty()
	if cfg.GeoIPDBPath != "" {
		if geoDB, err = geo.Open(cfg.GeoIPDBPath); err != nil {
			return err
		}
		log.Info("geoip ranges loaded", "ranges", geoDB.Len())
	}

	api := httpapi.New(httpapi.Deps{
		Auth:    authSvc,
		RBAC:    rbac,
		Blogs:   blog.NewService(st.blogs, bucket, cfg.IsProduction()),
		Courses: course.NewService(st.courses),
		Staff:   staff.NewService(st.staff),
		Bucket:  bucket,
		Geo:     geoDB,
		Limiter: st.limiter,
		Probe:   st.probe,
	}, httpapi.Options{
		CookieName:     cfg.SessionCookieName,
		Production:     cfg.IsProduction(),
		AllowedOrigins: append([]string{cfg.AppURL}, cfg.AllowedOrigins...),
		Version:        version,
	})

	sched := jobs.NewScheduler(ctx)
	if err := jobs.RegisterCleanup(sched, cfg.CronCleanup, authSvc, st.sweeper); err != nil {
		return err
	}
	sched.Start()
	defer sched.Shutdown()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting educbt-api", "version", version, "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := obs.Logger()
	memLimiter := ratelimit.NewMemory(cfg.RateLimit.Points, cfg.RateLimit.Window)

	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using the in-memory store")
		mem := memory.New()
		seed := migrate.DefaultSeed()
		seed.BcryptCost = cfg.BcryptCost
		if _, err := migrate.Seed(ctx, mem, seed); err != nil {
			return nil, err
		}
		return &stores{
			auth:    mem,
			blogs:   mem.Blogs(),
			courses: mem.Courses(),
			staff:   mem.Staff(),
			limiter: memLimiter,
			sweeper: memLimiter,
			close:   func() error { return nil },
		}, nil
	}

	db, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	st := &stores{
		auth:    db,
		blogs:   db.Blogs(),
		courses: db.Courses(),
		staff:   db.Staff(),
		probe:   httpapi.ReadyProbe{DB: db.DB()},
		close:   db.Close,
	}
	switch cfg.RateLimit.Backend {
	case "memory":
		st.limiter, st.sweeper = memLimiter, memLimiter
	default:
		window := ratelimit.NewWindow(db.RateLimits(), cfg.RateLimit.Points, cfg.RateLimit.Window)
		st.limiter, st.sweeper = window, window
	}
	return st, nil
}
