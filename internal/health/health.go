package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const (
	statusConnected     = "connected"
	statusDisconnected  = "disconnected"
	statusNotConfigured = "not configured"

	pingTimeout = 2 * time.Second
)

// Status is the readiness report.
type Status struct {
	Service     string `json:"service"`
	NATS        string `json:"nats"`
	Redis       string `json:"redis"`
	Database    string `json:"database"`
	Connections int    `json:"connections"`
}

// ConnectionCounter reports the number of live client connections.
type ConnectionCounter interface {
	Count() int
}

// Checker probes the backends the service was started with. Any of them may be
// nil when the deployment does not use it.
type Checker struct {
	service     string
	nc          *nats.Conn
	redisClient redis.UniversalClient
	db          *pgxpool.Pool
	connCounter ConnectionCounter
}

// NewChecker creates a health checker.
func NewChecker(service string, nc *nats.Conn, redisClient redis.UniversalClient, db *pgxpool.Pool, connCounter ConnectionCounter) *Checker {
	return &Checker{
		service:     service,
		nc:          nc,
		redisClient: redisClient,
		db:          db,
		connCounter: connCounter,
	}
}

// Check probes every configured backend.
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Service:  h.service,
		NATS:     statusNotConfigured,
		Redis:    statusNotConfigured,
		Database: statusNotConfigured,
	}

	if h.nc != nil {
		status.NATS = statusDisconnected
		if h.nc.IsConnected() {
			status.NATS = statusConnected
		}
	}

	if h.redisClient != nil {
		redisCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		status.Redis = statusDisconnected
		if err := h.redisClient.Ping(redisCtx).Err(); err == nil {
			status.Redis = statusConnected
		}
	}

	if h.db != nil {
		dbCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		status.Database = statusDisconnected
		if err := h.db.Ping(dbCtx); err == nil {
			status.Database = statusConnected
		}
	}

	if h.connCounter != nil {
		status.Connections = h.connCounter.Count()
	}

	return status
}

// Healthy reports whether no configured backend is disconnected.
func (s *Status) Healthy() bool {
	return s.NATS != statusDisconnected &&
		s.Redis != statusDisconnected &&
		s.Database != statusDisconnected
}

// IsHealthy reports whether every configured backend answers.
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy()
}

// ServeHTTP is the readiness endpoint: 200 when healthy, 503 otherwise.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy() {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Live is the liveness endpoint; it answers as long as the process serves HTTP.
func (h *Checker) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"service": h.service, "status": "ok"})
}
