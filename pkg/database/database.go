package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func newRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewClients(dbURL, redisAddr, redisPassword string, redisDB int) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := newRedisClient(redisAddr, redisPassword, redisDB)

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

func (c *Clients) CreateTables() error {
	schema := `CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		plan_type TEXT NOT NULL DEFAULT 'free',
		credits INT NOT NULL DEFAULT 20 CHECK (credits >= 0),
		last_reset TIMESTAMPTZ,
		plan_started_at TIMESTAMPTZ,
		plan_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS essays (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id),
		theme TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		score INT,
		feedback TEXT,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		graded_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		processed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := c.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("✅ Database tables are ready!")
	return nil
}
