package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/ridemediator/internal/config"
	"github.com/example/ridemediator/internal/ride/domain"
	"github.com/example/ridemediator/internal/ride/queue"
	"github.com/example/ridemediator/internal/ride/service"
	"github.com/example/ridemediator/pkg/events"
	"github.com/example/ridemediator/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg.ServiceName, cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	if cfg.Tracing {
		shutdown, err := observability.SetupTracer(ctx, cfg.ServiceName, nil)
		if err != nil {
			logger.Warn("tracer setup failed", zap.Error(err))
		} else {
			defer shutdown(context.Background())
		}
	}

	var queues queue.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
		queues = queue.NewRedisStore(redisClient, cfg.RedisPrefix)
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName)); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	recorder := events.NewRecorder()
	publisher := events.Fanout{events.NewPublisher(natsConn, cfg.NATSSubject, logger.Named("events")), recorder}

	coord := service.New(queues, publisher, domain.SystemClock{}, logger.Named("coordinator"), service.Config{
		CandidateLimit: cfg.CandidateLimit,
		Seed:           cfg.RankSeed,
	})

	sum, err := simulate(ctx, coord, cfg, logger.Named("sim"))
	if err != nil {
		logger.Fatal("simulation", zap.Error(err))
	}
	logger.Info("simulation finished",
		zap.Int("passengers", cfg.Passengers),
		zap.Int("confirmed", sum.confirmed),
		zap.Int("pending", sum.pending),
		zap.Int("unmatched", sum.unmatched),
		zap.Int("events_requested", recorder.Count(domain.EventRideRequested)),
		zap.Int("events_rejected", recorder.Count(domain.EventRideRejected)),
	)

	if cfg.OpsAddr == "" {
		return
	}
	srv := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           observability.MetricsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops endpoint listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// rounds bounds how often unserved passengers poll again after rides complete.
const rounds = 3

// summary counts passengers by their last outcome. pending covers queued
// requests and offers every candidate declined.
type summary struct {
	confirmed int
	pending   int
	unmatched int
}

// simulate registers the configured fleet and runs passengers through request and
// selection in rounds, completing confirmed rides between rounds so queued
// passengers can poll again.
func simulate(ctx context.Context, coord *service.Coordinator, cfg *config.Config, logger *zap.Logger) (summary, error) {
	decide := acceptPolicy(cfg.AcceptRate, cfg.RankSeed)

	drivers := make([]*domain.Driver, 0, cfg.Drivers)
	for i := 1; i <= cfg.Drivers; i++ {
		d := domain.NewDriver(fmt.Sprintf("Driver %d", i), decide)
		if err := coord.RegisterDriver(d); err != nil {
			return summary{}, err
		}
		drivers = append(drivers, d)
	}

	passengers := make([]*domain.Passenger, 0, cfg.Passengers)
	for i := 1; i <= cfg.Passengers; i++ {
		name := fmt.Sprintf("Passenger %d", i)
		display := func(_ uuid.UUID, candidates []domain.Candidate) {
			logger.Info("options", zap.String("passenger", name), zap.Int("count", len(candidates)))
		}
		p := domain.NewPassenger(name, coord, display, firstCandidate)
		if err := coord.RegisterPassenger(p); err != nil {
			return summary{}, err
		}
		passengers = append(passengers, p)
	}

	var sum summary
	waiting := passengers
	for round := 1; round <= rounds && len(waiting) > 0; round++ {
		r := runRound(ctx, waiting, domain.Location(cfg.Location), logger.With(zap.Int("round", round)))
		sum.confirmed += r.confirmed
		sum.unmatched = r.unmatched
		sum.pending = r.pending

		for _, d := range drivers {
			if _, riding := d.CurrentPassenger(); !riding {
				continue
			}
			if err := coord.CompleteRide(ctx, d.ID); err != nil {
				return sum, err
			}
		}

		next := waiting[:0:0]
		for _, p := range waiting {
			if !r.served[p.ID] {
				next = append(next, p)
			}
		}
		waiting = next
	}
	return sum, nil
}

type roundResult struct {
	summary
	served map[uuid.UUID]bool
}

// runRound sends every passenger through request and selection concurrently.
func runRound(ctx context.Context, passengers []*domain.Passenger, location domain.Location, logger *zap.Logger) roundResult {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = roundResult{served: make(map[uuid.UUID]bool)}
	)
	for _, p := range passengers {
		wg.Add(1)
		go func(p *domain.Passenger) {
			defer wg.Done()
			candidates, err := p.RequestRide(ctx, location)
			confirmed := false
			if err == nil {
				confirmed, err = p.SelectRide(ctx, candidates)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case confirmed:
				res.confirmed++
				res.served[p.ID] = true
			case err == nil:
				res.pending++
			default:
				res.unmatched++
				logger.Info("no ride", zap.String("passenger", p.Name), zap.Error(err))
			}
		}(p)
	}
	wg.Wait()
	return res
}

// acceptPolicy accepts each offer with probability rate.
func acceptPolicy(rate float64, seed uint64) domain.DecisionFunc {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(context.Context, uuid.UUID, uuid.UUID) bool {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64() < rate
	}
}

func firstCandidate(_ context.Context, _ uuid.UUID, candidates []domain.Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0].Name, true
}
