package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pasarela/internal/audit"
	"pasarela/internal/config"
	"pasarela/internal/credentials"
	"pasarela/internal/domain/charge"
	"pasarela/internal/erp"
	httpx "pasarela/internal/http"
	"pasarela/internal/notify"
	"pasarela/internal/orchestrator"
	"pasarela/internal/provider"
	"pasarela/internal/provider/cobalt"
	"pasarela/internal/provider/paypal"
	"pasarela/internal/provider/yappy"
	"pasarela/internal/risk"
	"pasarela/internal/store/postgres"
	redisstore "pasarela/internal/store/redis"
	"pasarela/internal/verification"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()
	repo := postgres.NewRepo(pool)

	sink := audit.NewResilient(repo)

	// ERP, with the client lookup cache when Redis is configured.
	var hansa erp.Hansa = erp.NewHTTPClient(cfg.ERP.BaseURL, cfg.ERP.Username, cfg.ERP.Password, cfg.ERP.Timeout)
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		hansa = erp.WithClientCache(hansa, redisstore.NewClientCache(rdb, cfg.Redis.ClientCacheTTL))
	}

	// Notifications: inline first, queued retry out of band.
	var mailer notify.Mailer
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}
	dispatcher := notify.NewDispatcher(mailer, repo)
	if mailer != nil {
		go notify.NewWorker(repo, mailer).Run(ctx)
	}

	// Payment processors.
	resolver := credentials.NewResolver(cfg.Companies)
	tokens := provider.NewTokenSource(cfg.Provider.TokenSkew)
	pp := paypal.New(cfg.Provider.PayPalBaseURL, cfg.Provider.Timeout, resolver, tokens)

	registry := provider.NewRegistry()
	registry.Register(charge.MethodCobalt, cobalt.New(cfg.Provider.CobaltBaseURL, cfg.Provider.Timeout, resolver, tokens))
	registry.Register(charge.MethodPayPal, pp)
	registry.Register(charge.MethodYappy, yappy.New(cfg.Provider.YappyBaseURL, cfg.Provider.Timeout, resolver))

	orch := orchestrator.New(registry, resolver, hansa, dispatcher, sink, cfg.ERP.Timeout)
	codes := verification.NewService(repo, dispatcher, sink, cfg.Verification.CodeTTL)

	var scorer risk.Scorer
	if cfg.Recaptcha.Secret != "" {
		scorer = risk.NewRecaptcha(cfg.Recaptcha.Secret, cfg.Recaptcha.MinScore)
	}

	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:       cfg,
		Orchestrator: orch,
		Verification: codes,
		Hansa:        hansa,
		Repo:         repo,
		PayPal:       pp,
		Scorer:       scorer,
		Audit:        sink,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Pasarela API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	log.Info().Msg("server stopped")
}
