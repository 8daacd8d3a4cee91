package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists users and redesign records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// CreateGeneratedRoom inserts a redesign record. Records are never updated afterwards.
func (s *PostgresStore) CreateGeneratedRoom(ctx context.Context, room GeneratedRoom) (GeneratedRoom, error) {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO "aiGeneratedImage" ("roomType", "designType", "orgImage", "aiImage", "userEmail", analysis, "createdAt")
         VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		room.RoomType, room.DesignType, room.OrgImage, room.AIImage, room.UserEmail, room.Analysis, room.CreatedAt.UTC(),
	).Scan(&room.ID)
	if err != nil {
		return GeneratedRoom{}, fmt.Errorf("insert generated room: %w", err)
	}
	return room, nil
}

// ListGeneratedRooms returns the most recent redesigns of a user.
func (s *PostgresStore) ListGeneratedRooms(ctx context.Context, email string, limit int) ([]GeneratedRoom, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, "roomType", "designType", "orgImage", "aiImage", COALESCE("userEmail", ''), analysis, COALESCE("createdAt", 'epoch')
         FROM "aiGeneratedImage" WHERE lower("userEmail") = lower($1) ORDER BY id DESC LIMIT $2`,
		strings.TrimSpace(email), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query generated rooms: %w", err)
	}
	defer rows.Close()

	rooms := []GeneratedRoom{}
	for rows.Next() {
		var room GeneratedRoom
		if err := rows.Scan(&room.ID, &room.RoomType, &room.DesignType, &room.OrgImage, &room.AIImage, &room.UserEmail, &room.Analysis, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generated room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generated rooms: %w", err)
	}
	return rooms, nil
}

// CreateGuestRoom inserts an ephemeral guest redesign.
func (s *PostgresStore) CreateGuestRoom(ctx context.Context, room GuestRoom) (GuestRoom, error) {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO "guestGeneratedImage" ("sessionId", "roomType", "designType", "orgImage", "aiImage", "createdAt", "expiresAt")
         VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		room.SessionID, room.RoomType, room.DesignType, room.OrgImage, room.AIImage, room.CreatedAt.UTC(), room.ExpiresAt.UTC(),
	).Scan(&room.ID)
	if err != nil {
		return GuestRoom{}, fmt.Errorf("insert guest room: %w", err)
	}
	return room, nil
}

// ListGuestRooms returns unexpired redesigns of a guest session.
func (s *PostgresStore) ListGuestRooms(ctx context.Context, sessionID string, now time.Time) ([]GuestRoom, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, "sessionId", "roomType", "designType", "orgImage", "aiImage", COALESCE("createdAt", 'epoch'), "expiresAt"
         FROM "guestGeneratedImage" WHERE "sessionId" = $1 AND "expiresAt" > $2 ORDER BY id DESC LIMIT 50`,
		sessionID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("query guest rooms: %w", err)
	}
	defer rows.Close()

	rooms := []GuestRoom{}
	for rows.Next() {
		var room GuestRoom
		if err := rows.Scan(&room.ID, &room.SessionID, &room.RoomType, &room.DesignType, &room.OrgImage, &room.AIImage, &room.CreatedAt, &room.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan guest room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guest rooms: %w", err)
	}
	return rooms, nil
}

// PurgeExpiredGuestRooms deletes guest records whose expiry has passed.
func (s *PostgresStore) PurgeExpiredGuestRooms(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM "guestGeneratedImage" WHERE "expiresAt" <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge guest rooms: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EnsureUser returns the user with the given email, creating it with default credits if missing.
func (s *PostgresStore) EnsureUser(ctx context.Context, user User) (User, error) {
	user.Email = strings.TrimSpace(user.Email)
	existing, err := s.GetUserByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, "imageUrl", credits) VALUES ($1, $2, $3, $4) RETURNING id, credits`,
		user.Name, user.Email, user.ImageURL, DefaultCredits,
	).Scan(&user.ID, &user.Credits)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUserByEmail looks a user up case-insensitively.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, "imageUrl", COALESCE(credits, 0) FROM users WHERE lower(email) = lower($1) ORDER BY id LIMIT 1`,
		strings.TrimSpace(email),
	).Scan(&user.ID, &user.Name, &user.Email, &user.ImageURL, &user.Credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// DeductCredit spends one credit in a single conditional update and returns the new balance.
func (s *PostgresStore) DeductCredit(ctx context.Context, email string) (int, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	var remaining int
	err = s.pool.QueryRow(ctx,
		`UPDATE users SET credits = credits - 1 WHERE id = $1 AND credits > 0 RETURNING credits`,
		user.ID,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoCredits
	}
	if err != nil {
		return 0, fmt.Errorf("deduct credit: %w", err)
	}
	return remaining, nil
}

// AddCredits grants amount credits and returns the new balance.
func (s *PostgresStore) AddCredits(ctx context.Context, email string, amount int) (int, error) {
	var balance int
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET credits = COALESCE(credits, 0) + $2
         WHERE id = (SELECT id FROM users WHERE lower(email) = lower($1) ORDER BY id LIMIT 1)
         RETURNING credits`,
		strings.TrimSpace(email), amount,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return balance, nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
