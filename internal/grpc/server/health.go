// Package server реализует gRPC-сервер проверки здоровья API.
//
// HealthServer публикует стандартный сервис grpc.health.v1.Health и
// периодически опрашивает зависимости. Статус SERVING выставляется
// только когда отвечают все зависимости.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
)

// ServiceName имя сервиса в ответах Health/Check.
const ServiceName = "fonoapp.api"

const pingTimeout = 2 * time.Second

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer gRPC-сервер со статусом готовности API.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

// NewHealthServer создаёт сервер. До первой проверки статус NOT_SERVING.
func NewHealthServer(log *slog.Logger, checks map[string]Pinger, interval time.Duration) *HealthServer {
	s := &HealthServer{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		log:      log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Check опрашивает зависимости и обновляет статус. Возвращает true, если все ответили.
func (s *HealthServer) Check(ctx context.Context) bool {
	ok := true
	for name, p := range s.checks {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			s.log.Warn("dependency is unavailable", slog.String("dependency", name), sl.Err(err))
			ok = false
		}
	}
	if ok {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

// Watch проверяет зависимости с заданным интервалом до отмены ctx.
func (s *HealthServer) Watch(ctx context.Context) {
	s.Check(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Serve обслуживает соединения на lis до вызова Stop.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info("gRPC health server starting", slog.String("address", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop переводит статус в NOT_SERVING и останавливает сервер.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *HealthServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
