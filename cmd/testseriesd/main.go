package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-testseries/internal/api/http"
	auth "github.com/mind-engage/mindengage-testseries/internal/auth/middleware"
	"github.com/mind-engage/mindengage-testseries/internal/config"
	"github.com/mind-engage/mindengage-testseries/internal/db"
	"github.com/mind-engage/mindengage-testseries/internal/exam"
	"github.com/mind-engage/mindengage-testseries/internal/grading"
	"github.com/mind-engage/mindengage-testseries/internal/logging"
	syncx "github.com/mind-engage/mindengage-testseries/internal/sync"
)

func main() {
	root := os.Getenv("TESTSERIES_ROOT")
	if root == "" {
		root = "."
	}
	cfg, v, err := config.Load(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(runToken(cfg, os.Args[2:]))
	}

	log, level, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	config.Watch(v, log, func(next *config.Config) {
		if err := level.UnmarshalText([]byte(next.Logging.Level)); err != nil {
			log.Warn("ignoring log level", zap.String("level", next.Logging.Level), zap.Error(err))
			return
		}
		log.Info("log level updated", zap.String("level", level.String()))
	})

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, events, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	if cfg.SeedFile != "" {
		n, err := exam.LoadSeedFile(ctx, store, cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("seed %s: %w", cfg.SeedFile, err)
		}
		log.Info("seeded tests", zap.String("file", cfg.SeedFile), zap.Int("count", n))
	}

	authSvc := auth.NewAuthService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.RouterDeps{
			Store:          store,
			Events:         events,
			Auth:           authSvc,
			Log:            log,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("db", cfg.Database.Driver))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (exam.Store, *syncx.EventRepo, func(), error) {
	g := grading.NewDefaultGrader()
	if cfg.Database.Driver == "memory" {
		return exam.NewInMemoryStore(g), nil, func() {}, nil
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	h, err := db.Open(openCtx, db.Driver(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db open failed: %w", err)
	}
	s := exam.NewSQLStore(h, cfg.Database.Driver, g)
	return s, s.Events(), func() { _ = h.Close() }, nil
}

// runToken prints a signed development token.
func runToken(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "subject (user id)")
	role := fs.String("role", "student", "student|reviewer|admin")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sub == "" {
		fmt.Fprintln(os.Stderr, "token: -sub is required")
		return 2
	}
	tok, err := auth.NewAuthService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).IssueJWT(*sub, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(tok)
	return 0
}
