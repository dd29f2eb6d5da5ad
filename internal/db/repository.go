package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SFTtech/openage-lobbyserver/internal/model"
)

// PlayerRepository is the credential store seen by the session layer.
// Used for dependency injection in tests.
type PlayerRepository interface {
	// GetPlayer returns the player record for the given username.
	// Returns nil, nil if the player does not exist.
	GetPlayer(ctx context.Context, username string) (*model.Player, error)

	// AddPlayer inserts a new player with the given password hash.
	// Returns nil, nil if the username is already taken.
	AddPlayer(ctx context.Context, username, passwordHash string) (*model.Player, error)
}

// PostgresPlayerRepository implements PlayerRepository on PostgreSQL.
type PostgresPlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPlayerRepository creates a new PostgreSQL repository.
func NewPostgresPlayerRepository(pool *pgxpool.Pool) *PostgresPlayerRepository {
	return &PostgresPlayerRepository{pool: pool}
}

// GetPlayer returns the player record for the given username.
// Returns nil, nil if the player does not exist.
func (r *PostgresPlayerRepository) GetPlayer(ctx context.Context, username string) (*model.Player, error) {
	username = strings.ToLower(username)
	var p model.Player
	err := r.pool.QueryRow(ctx,
		`SELECT username, password, created_at
		 FROM players WHERE username = $1`, username,
	).Scan(&p.Username, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying player %q: %w", username, err)
	}
	return &p, nil
}

// AddPlayer inserts a new player. ON CONFLICT DO NOTHING makes the duplicate
// check race-free; zero rows affected means the name is taken.
func (r *PostgresPlayerRepository) AddPlayer(ctx context.Context, username, passwordHash string) (*model.Player, error) {
	username = strings.ToLower(username)
	now := time.Now()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO players (username, password, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO NOTHING`,
		username, passwordHash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting player %q: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return &model.Player{Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}
