// Package db implements store.Store on SurrealDB over an auto-reconnecting
// websocket.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades fail when ALPN negotiates HTTP/2 on wss://.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Auth levels accepted in Config.AuthLevel.
const (
	AuthRoot     = "root"
	AuthDatabase = "database"
)

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // AuthRoot (default) or AuthDatabase

	// MaxReconnects bounds reconnect attempts after the socket drops.
	// Zero means 10.
	MaxReconnects int
}

// baseURL strips the /rpc suffix; gorillaws appends it itself.
func (c Config) baseURL() string {
	return strings.TrimSuffix(strings.TrimRight(c.URL, "/"), "/rpc")
}

func (c Config) auth() surrealdb.Auth {
	if c.AuthLevel == AuthDatabase {
		return surrealdb.Auth{
			Namespace: c.Namespace,
			Database:  c.Database,
			Username:  c.Username,
			Password:  c.Password,
		}
	}
	return surrealdb.Auth{Username: c.Username, Password: c.Password}
}

// Client is a SurrealDB-backed store.
type Client struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
	cfg  Config
	log  *slog.Logger
}

var (
	_ store.Store          = (*Client)(nil)
	_ store.VectorSearcher = (*Client)(nil)
	_ store.Pinger         = (*Client)(nil)
)

// NewClient dials SurrealDB, signs in and selects the namespace and database.
// The connection reconnects with exponential backoff when it drops.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "surrealdb")

	conn := dial(cfg, logger.New(log.Handler()))
	log.Info("connecting", "url", cfg.URL, "namespace", cfg.Namespace, "database", cfg.Database)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, cfg.auth()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin as %s (%s): %w", cfg.Username, cfg.AuthLevel, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	log.Info("connected")
	return &Client{conn: conn, db: db, cfg: cfg, log: log}, nil
}

func dial(cfg Config, sdkLogger logger.Logger) *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     cfg.baseURL(),
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = cfg.MaxReconnects
	if retryer.MaxRetries <= 0 {
		retryer.MaxRetries = 10
	}
	conn.Retryer = retryer
	return conn
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("closing connection")
	return c.conn.Close(ctx)
}

// Ping runs a trivial query to check the connection is usable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := surrealdb.Query[bool](ctx, c.db, "RETURN true", nil); err != nil {
		return fmt.Errorf("ping surrealdb: %w", err)
	}
	return nil
}

// InitSchema applies the idempotent schema. dimension sizes the HNSW index
// over chunk embeddings and must match the configured embedder.
func (c *Client) InitSchema(ctx context.Context, dimension int) error {
	start := time.Now()
	if err := c.exec(ctx, "init schema", SchemaSQL(dimension), nil); err != nil {
		return err
	}
	c.log.Info("schema ready", "dimension", dimension, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// WipeData deletes every record while keeping the schema. Testing only.
func (c *Client) WipeData(ctx context.Context) error {
	c.log.Warn("wiping all data", "tables", len(dataTables))

	var sql strings.Builder
	sql.WriteString("BEGIN TRANSACTION;\n")
	for _, table := range dataTables {
		fmt.Fprintf(&sql, "DELETE %s;\n", table)
	}
	sql.WriteString("COMMIT TRANSACTION;")

	return c.exec(ctx, "wipe data", sql.String(), nil)
}
