package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meshadmin.org/internal/audit"
	"meshadmin.org/internal/auth"
	"meshadmin.org/internal/bulk"
	"meshadmin.org/internal/config"
	"meshadmin.org/internal/coord"
	"meshadmin.org/internal/gateway"
	"meshadmin.org/internal/guard"
	"meshadmin.org/internal/httpapi"
	"meshadmin.org/internal/obs"
	"meshadmin.org/internal/rbac"
	"meshadmin.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(os.Getenv("MESHADMIN_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Postgres.DSN == "" {
		log.Fatal("postgres dsn is required (MESHADMIN_PG_DSN)")
	}

	store, err := pg.Open(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	authority, err := rbac.NewAuthority(store)
	if err != nil {
		log.Fatalf("rbac: %v", err)
	}
	g, err := guard.New(authority)
	if err != nil {
		log.Fatalf("guard: %v", err)
	}
	ledger, err := audit.NewLedger(store)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	gw, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: cfg.GatewayTimeout(),
	})
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	svc, err := coord.NewService(gw)
	if err != nil {
		log.Fatalf("coord: %v", err)
	}
	bulkCoord, err := bulk.NewCoordinator(svc.Nodes, ledger)
	if err != nil {
		log.Fatalf("bulk: %v", err)
	}
	signer, err := auth.NewSigner(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.SessionTTL())
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	api, err := httpapi.New(httpapi.Deps{
		Authority:          authority,
		Guard:              g,
		Ledger:             ledger,
		Coord:              svc,
		Bulk:               bulkCoord,
		Signer:             signer,
		Settings:           store,
		GroupToRole:        cfg.GroupToRole(),
		Ready:              httpapi.ReadyProbe{DB: store.DB()},
		Version:            version,
		RateLimitBurst:     cfg.RateLimit.Burst,
		RateLimitPerSecond: cfg.RateLimit.PerSecond,
	})
	if err != nil {
		log.Fatalf("httpapi: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting meshadmin-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
