// Command server runs the managed identity wallet service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"miw/internal/audit"
	credentialhandler "miw/internal/credential/handler"
	credentialmetrics "miw/internal/credential/metrics"
	credentialservice "miw/internal/credential/service"
	credentialstore "miw/internal/credential/store"
	"miw/internal/did"
	jwttoken "miw/internal/jwt_token"
	"miw/internal/platform/config"
	"miw/internal/platform/httpserver"
	"miw/internal/platform/logger"
	"miw/internal/platform/metrics"
	"miw/internal/platform/postgres"
	platformredis "miw/internal/platform/redis"
	"miw/internal/presentation"
	presentationhandler "miw/internal/presentation/handler"
	"miw/internal/signing"
	"miw/internal/sts"
	stshandler "miw/internal/sts/handler"
	stsstore "miw/internal/sts/store"
	httptransport "miw/internal/transport/http"
	"miw/internal/verification"
	verificationhandler "miw/internal/verification/handler"
	wallethandler "miw/internal/wallet/handler"
	walletservice "miw/internal/wallet/service"
	walletstore "miw/internal/wallet/store"
	"miw/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink, closeSink, err := buildAuditSink(ctx, cfg)
	if err != nil {
		log.Error("audit sink setup failed", "error", err)
		os.Exit(1)
	}
	defer closeSink()
	auditor := audit.NewPublisher(sink)

	keys, wallets, holders, issuers, ledger := buildStores(db, redisClient)

	signers := signing.NewRegistry(keys)

	walletSvc := walletservice.New(wallets, signers, walletservice.Config{
		Host:          cfg.Server.Host,
		AuthorityBPN:  cfg.Authority.BPN,
		AuthorityName: cfg.Authority.Name,
	}, walletservice.WithLogger(log), walletservice.WithAudit(auditor))

	credOpts := []credentialservice.Option{
		credentialservice.WithLogger(log),
		credentialservice.WithMetrics(credentialmetrics.New()),
		credentialservice.WithAudit(auditor),
	}
	if db != nil {
		credOpts = append(credOpts, credentialservice.WithTxRunner(
			func(ctx context.Context, fn func(ctx context.Context) error) error {
				return tx.Run(ctx, db, fn)
			}))
	}
	credSvc := credentialservice.New(walletSvc, holders, issuers, signers,
		credentialservice.Config{CredentialValidity: cfg.Credential.Validity}, credOpts...)

	// The two services reference each other: wallet creation issues the
	// bootstrap BPN credential through the credential service.
	walletSvc.SetCreatedHook(credSvc.IssueBPNForWallet)

	resolver := did.NewWebResolver(10 * time.Second)

	verifyOpts := []verification.Option{verification.WithLogger(log)}
	if cfg.Revocation.URL != "" {
		client := verification.NewStatusListClient(cfg.Revocation.URL, cfg.Revocation.Timeout,
			verification.WithBearerToken(cfg.Revocation.Token))
		verifyOpts = append(verifyOpts, verification.WithRevocationClient(client))
	}
	verifySvc := verification.New(resolver, verifyOpts...)

	presentationSvc := presentation.New(walletSvc, holders, signers, resolver, verifySvc,
		presentation.WithLogger(log),
		presentation.WithAudit(auditor),
		presentation.WithTokenLedger(ledger))

	stsSvc := sts.New(walletSvc, signers, resolver, ledger,
		sts.Config{TokenTTL: cfg.STS.TokenTTL},
		sts.WithLogger(log), sts.WithAudit(auditor))

	if err := walletSvc.EnsureAuthorityWallet(ctx); err != nil {
		log.Error("authority wallet bootstrap failed", "error", err)
		os.Exit(1)
	}

	tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	walletHandler := wallethandler.New(walletSvc, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Metrics:   metrics.New(),
		Validator: tokens,
		Public:    walletHandler,
		API: []httptransport.Registrar{
			walletHandler,
			credentialhandler.New(credSvc, log),
			verificationhandler.New(verifySvc, log),
			presentationhandler.New(presentationSvc, log),
			stshandler.New(stsSvc, log),
		},
		Health: healthCheck(db, redisClient),
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Server.Addr, "host", cfg.Server.Host)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStores selects backends by configuration: PostgreSQL when a database
// URL is set, Redis for the replay ledger when available, in-memory otherwise.
func buildStores(db *sql.DB, redisClient *platformredis.Client) (
	signing.KeyStore,
	walletservice.Store,
	credentialservice.HolderStore,
	credentialservice.IssuerStore,
	*replayLedger,
) {
	var (
		keys    signing.KeyStore
		wallets walletservice.Store
		holders credentialservice.HolderStore
		issuers credentialservice.IssuerStore
	)
	if db != nil {
		keys = signing.NewPostgresKeyStore(db)
		wallets = walletstore.NewPostgres(db)
		holders = credentialstore.NewHolderPostgres(db)
		issuers = credentialstore.NewIssuerPostgres(db)
	} else {
		keys = signing.NewInMemoryKeyStore()
		wallets = walletstore.NewInMemory()
		holders = credentialstore.NewHolderMemory()
		issuers = credentialstore.NewIssuerMemory()
	}

	ledger := &replayLedger{}
	switch {
	case redisClient != nil:
		ledger.store = stsstore.NewJTIRedis(redisClient.Client)
	case db != nil:
		ledger.store = stsstore.NewJTIPostgres(db)
	default:
		ledger.store = stsstore.NewJTIMemory()
	}
	return keys, wallets, holders, issuers, ledger
}

// jtiStore is the full replay-ledger contract every backend satisfies.
type jtiStore interface {
	Register(ctx context.Context, jti string, expiresAt time.Time) error
	Consume(ctx context.Context, jti string, expiresAt time.Time) error
}

// replayLedger hands the selected backend to both ledger consumers: the
// token service registers, the presentation service consumes.
type replayLedger struct {
	store jtiStore
}

func (l *replayLedger) Register(ctx context.Context, jti string, expiresAt time.Time) error {
	return l.store.Register(ctx, jti, expiresAt)
}

func (l *replayLedger) Consume(ctx context.Context, jti string, expiresAt time.Time) error {
	return l.store.Consume(ctx, jti, expiresAt)
}

func buildAuditSink(ctx context.Context, cfg config.Config) (audit.Sink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return audit.NewInMemorySink(), func() {}, nil
	}
	sink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sink.Close(closeCtx)
	}, nil
}

func healthCheck(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
