package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-helpdesk/internal/server"
	"github.com/goliatone/go-helpdesk/pkg/config"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/storage"
)

func main() {
	var (
		addr      = flag.String("addr", "", "listen address, overrides config host:port")
		useMemory = flag.Bool("memory", false, "keep notifications in process memory")
		dsn       = flag.String("dsn", "", "sqlite DSN, overrides config")
	)
	flag.Parse()

	ctx := context.Background()
	lgr := logger.New()

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dsn != "" {
		cfg.Persistence.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	providers, cleanup, err := buildStorage(ctx, cfg, *useMemory, lgr)
	if err != nil {
		log.Fatalf("failed to set up storage: %v", err)
	}
	defer cleanup()

	srv, err := server.New(server.Dependencies{
		Config:  cfg,
		Storage: providers,
		Logger:  lgr,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	seedDemoUsers(srv, lgr)

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	}

	httpSrv := &http.Server{
		Addr:    listenAddr,
		Handler: srv.Handler(),
		// No global write timeout: the notification stream holds its
		// response open indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lgr.Info("starting server", logger.F("addr", listenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lgr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("server shutdown", logger.F("error", err))
	}
}

func buildStorage(ctx context.Context, cfg config.Config, useMemory bool, lgr logger.Logger) (storage.Providers, func(), error) {
	if useMemory {
		return storage.NewMemoryProviders(), func() {}, nil
	}

	db, err := openDatabase(ctx, cfg.Persistence, lgr)
	if err != nil {
		return storage.Providers{}, nil, err
	}
	return storage.NewBunProviders(db), func() { db.Close() }, nil
}

func seedDemoUsers(srv *server.Server, lgr logger.Logger) {
	users := []server.User{
		{Name: "Alice", Email: "alice@example.com", IsAdmin: true},
		{Name: "Bob", Email: "bob@example.com"},
		{Name: "Carol", Email: "carol@example.com"},
	}
	lgr.Info("demo users")
	for _, user := range users {
		srv.Sessions().AddUser(user)
		lgr.Info("  user ready",
			logger.F("email", user.Email),
			logger.F("admin", user.IsAdmin))
	}
}
