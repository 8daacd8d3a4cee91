package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that a record could not be located in the backing store.
var ErrNotFound = errors.New("record not found")

// ErrNoCredits indicates the user has no credits left to spend.
var ErrNoCredits = errors.New("no credits remaining")

// DefaultCredits is the balance granted to new users.
const DefaultCredits = 3

// User is an account that spends credits on redesigns.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
	Credits  int    `json:"credits"`
}

// GeneratedRoom is an append-only record of a completed redesign.
// Analysis holds the serialized room analysis, or nil when analysis failed.
type GeneratedRoom struct {
	ID         int64     `json:"id"`
	RoomType   string    `json:"roomType"`
	DesignType string    `json:"designType"`
	OrgImage   string    `json:"orgImage"`
	AIImage    string    `json:"aiImage"`
	UserEmail  string    `json:"userEmail"`
	Analysis   *string   `json:"analysis,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GuestRoom is an ephemeral redesign kept for a guest session until ExpiresAt.
type GuestRoom struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	RoomType   string    `json:"roomType"`
	DesignType string    `json:"designType"`
	OrgImage   string    `json:"orgImage"`
	AIImage    string    `json:"aiImage"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Store defines the persistence behaviors the application relies on.
type Store interface {
	CreateGeneratedRoom(ctx context.Context, room GeneratedRoom) (GeneratedRoom, error)
	ListGeneratedRooms(ctx context.Context, email string, limit int) ([]GeneratedRoom, error)
	CreateGuestRoom(ctx context.Context, room GuestRoom) (GuestRoom, error)
	ListGuestRooms(ctx context.Context, sessionID string, now time.Time) ([]GuestRoom, error)
	PurgeExpiredGuestRooms(ctx context.Context, now time.Time) (int64, error)
	EnsureUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	DeductCredit(ctx context.Context, email string) (int, error)
	AddCredits(ctx context.Context, email string, amount int) (int, error)
	Close()
}

// NewStore selects a backing store based on whether a database URL is provided.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
        id SERIAL PRIMARY KEY,
        name VARCHAR NOT NULL,
        email VARCHAR NOT NULL,
        "imageUrl" VARCHAR NOT NULL,
        credits INTEGER DEFAULT 3
    )`,
		`CREATE TABLE IF NOT EXISTS "aiGeneratedImage" (
        id SERIAL PRIMARY KEY,
        "roomType" VARCHAR NOT NULL,
        "designType" VARCHAR NOT NULL,
        "orgImage" VARCHAR NOT NULL,
        "aiImage" VARCHAR NOT NULL,
        "userEmail" VARCHAR,
        analysis TEXT
    )`,
		`CREATE TABLE IF NOT EXISTS "guestGeneratedImage" (
        id SERIAL PRIMARY KEY,
        "sessionId" VARCHAR NOT NULL,
        "roomType" VARCHAR NOT NULL,
        "designType" VARCHAR NOT NULL,
        "orgImage" VARCHAR NOT NULL,
        "aiImage" VARCHAR NOT NULL,
        "createdAt" TIMESTAMP DEFAULT now(),
        "expiresAt" TIMESTAMP NOT NULL
    )`,
	}
	for _, stmt := range tables {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	var schemaAlters = []string{
		`ALTER TABLE "aiGeneratedImage" ADD COLUMN IF NOT EXISTS analysis TEXT`,
		`ALTER TABLE "aiGeneratedImage" ADD COLUMN IF NOT EXISTS "createdAt" TIMESTAMP DEFAULT now()`,
		`CREATE INDEX IF NOT EXISTS "aiGeneratedImage_userEmail_idx" ON "aiGeneratedImage" (lower("userEmail"))`,
		`CREATE INDEX IF NOT EXISTS "guestGeneratedImage_expiresAt_idx" ON "guestGeneratedImage" ("expiresAt")`,
		`CREATE INDEX IF NOT EXISTS users_email_idx ON users (lower(email))`,
	}
	for _, stmt := range schemaAlters {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("alter schema: %w", err)
		}
	}

	return nil
}
