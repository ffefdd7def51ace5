package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"danus-dashboard/backend/internal/audit"
	auditrepo "danus-dashboard/backend/internal/audit/repository"
	"danus-dashboard/backend/internal/config"
	"danus-dashboard/backend/internal/db"
	healthhandler "danus-dashboard/backend/internal/health/handler"
	identityrepo "danus-dashboard/backend/internal/identity/repository"
	identityservice "danus-dashboard/backend/internal/identity/service"
	membershiprepo "danus-dashboard/backend/internal/membership/repository"
	orgrepo "danus-dashboard/backend/internal/organization/repository"
	"danus-dashboard/backend/internal/platform/rbac"
	"danus-dashboard/backend/internal/policy/engine"
	"danus-dashboard/backend/internal/recordstore"
	"danus-dashboard/backend/internal/security"
	"danus-dashboard/backend/internal/server"
	"danus-dashboard/backend/internal/server/interceptors"
	sessionrepo "danus-dashboard/backend/internal/session/repository"
	"danus-dashboard/backend/internal/telemetry"
	telemetryotel "danus-dashboard/backend/internal/telemetry/otel"
	"danus-dashboard/backend/internal/telemetry/producer"
	userrepo "danus-dashboard/backend/internal/user/repository"
)

const (
	serviceVersion  = "0.1.0"
	shutdownTimeout = 10 * time.Second
	redisPingWait   = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Insecure:       cfg.OTelInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	orgs, memberships, closeStores := openStores(cfg, conn)
	defer closeStores()

	privateKey, publicKey, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt keys: %v", err)
	}
	issuer, err := security.NewCredentialIssuer(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL())
	if err != nil {
		log.Fatalf("credential issuer: %v", err)
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), interceptors.ClientIP)
	events, closeEvents := eventSinks(cfg, providers, auditLogger)
	defer closeEvents()

	auth := identityservice.NewAuthService(
		userrepo.NewPostgresRepository(conn),
		identityrepo.NewPostgresRepository(conn),
		sessionrepo.NewPostgresRepository(conn),
		security.NewPasswordHasher(cfg.BcryptCost),
		issuer,
		events,
	)

	resolver := rbac.NewResolver(memberships)
	policy, err := engine.NewActionPolicy(ctx)
	if err != nil {
		log.Fatalf("action policy: %v", err)
	}
	health := healthhandler.NewServer(conn, policy)

	grpcServer := server.NewGRPCServer(server.InterceptorDeps{
		Auth:   auth,
		Audit:  auditLogger,
		Events: events,
	})
	server.RegisterServices(grpcServer, server.Deps{
		Resolver: resolver,
		Actions:  policy,
		Health:   health,
	})

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPServer(server.HTTPDeps{
			Auth:        auth,
			Resolver:    resolver,
			Actions:     policy,
			Orgs:        orgs,
			Memberships: memberships,
			Health:      health,
			Events:      events,
			Cookie: server.CookieConfig{
				Name:   cfg.SessionCookieName,
				Secure: cfg.Production(),
				MaxAge: cfg.SessionTTL(),
			},
			SignInPath:        cfg.SignInPath,
			ProtectedPrefixes: cfg.ProtectedPrefixList(),
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("serve gRPC: %v", err)
		}
	}()
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()

	// Let in-flight async emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("servers stopped")
}

// openStores selects the organization and membership backends and puts the Redis cache in
// front of memberships when REDIS_ADDR is set.
func openStores(cfg *config.Config, conn *sql.DB) (orgrepo.Repository, membershiprepo.Repository, func()) {
	var (
		orgs        orgrepo.Repository
		memberships membershiprepo.Repository
	)
	switch cfg.MembershipBackend {
	case config.BackendRecords:
		client := recordstore.NewClient(cfg.RecordServiceURL, cfg.RecordServiceToken)
		orgs = orgrepo.NewRecordsRepository(client)
		memberships = membershiprepo.NewRecordsRepository(client)
		log.Printf("membership: reading organizations and memberships from %s", cfg.RecordServiceURL)
	default:
		orgs = orgrepo.NewPostgresRepository(conn)
		memberships = membershiprepo.NewPostgresRepository(conn)
	}

	if cfg.RedisAddr == "" {
		return orgs, memberships, func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingWait)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Cache errors fall through to the backend.
		log.Printf("membership: redis %s unreachable: %v", cfg.RedisAddr, err)
	}
	memberships = membershiprepo.NewCachedRepository(memberships, rdb, cfg.RoleCacheDuration())
	return orgs, memberships, func() {
		if err := rdb.Close(); err != nil {
			log.Printf("membership: close redis: %v", err)
		}
	}
}

// eventSinks fans auth events out to OTel logs and either Kafka (drained into the audit log by
// cmd/worker) or the audit log directly.
func eventSinks(cfg *config.Config, providers *telemetryotel.Providers, auditLogger *audit.Logger) (telemetry.EventEmitter, func()) {
	otelEvents := telemetryotel.NewEventEmitter(providers.LoggerProvider)
	kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic)
	if kp == nil {
		return telemetry.NewFanout(otelEvents, auditLogger), func() {}
	}
	var pub producer.Producer = kp
	log.Printf("telemetry: publishing auth events to %s", cfg.AuthEventsTopic)
	return telemetry.NewFanout(otelEvents, pub), func() {
		if err := pub.Close(); err != nil {
			log.Printf("telemetry: close kafka producer: %v", err)
		}
	}
}
