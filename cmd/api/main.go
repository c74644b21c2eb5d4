package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/robertarktes/seatbooking/internal/adapters/mongo"
	"github.com/robertarktes/seatbooking/internal/adapters/postgres"
	"github.com/robertarktes/seatbooking/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/seatbooking/internal/adapters/redis"
	"github.com/robertarktes/seatbooking/internal/booking"
	"github.com/robertarktes/seatbooking/internal/clock"
	"github.com/robertarktes/seatbooking/internal/config"
	httphandler "github.com/robertarktes/seatbooking/internal/http"
	"github.com/robertarktes/seatbooking/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := postgres.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	repo := postgres.NewRepository(pool, logger)

	var idemp *redisadapter.Idempotency
	var rl *redisadapter.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		idemp = redisadapter.NewIdempotency(redisClient, time.Hour)
		rl = redisadapter.NewRateLimiter(redisClient)
	}

	coordOpts := []booking.CoordinatorOption{booking.WithBookingTTL(cfg.BookingTTL)}
	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()
		rabbitPub, err := rabbit.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		coordOpts = append(coordOpts, booking.WithEvents(rabbitPub))
	}
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit := mongoadapter.NewAuditLogger(mongoClient.Database("seatbooking"), logger)
		coordOpts = append(coordOpts, booking.WithAudit(audit))
	}

	coordinator := booking.NewCoordinator(repo, clock.NewSystem(), logger, coordOpts...)

	var idempStore httphandler.IdempotencyStore
	if idemp != nil {
		idempStore = idemp
	}
	handlers := httphandler.NewHandlers(coordinator, repo, idempStore, repo, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.HTTPAddr).Info("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
