package database

import (
	"context"
	"fmt"
)

// The unique constraints on email, username and the four provider id columns
// are what make the resolver's lookup-then-create sequence race-safe: a lost
// create race surfaces as a 23505 instead of a duplicate account.
var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		username VARCHAR(100) UNIQUE NOT NULL,
		password VARCHAR(255),
		first_name VARCHAR(100),
		last_name VARCHAR(100),
		phone VARCHAR(50),
		bio TEXT,
		profile_picture VARCHAR(500),
		google_id VARCHAR(255) UNIQUE,
		discord_id VARCHAR(255) UNIQUE,
		facebook_id VARCHAR(255) UNIQUE,
		twitter_id VARCHAR(255) UNIQUE,
		role VARCHAR(20) NOT NULL DEFAULT 'USER',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_banned BOOLEAN NOT NULL DEFAULT FALSE,
		ban_reason TEXT,
		last_login_at TIMESTAMP WITH TIME ZONE,
		login_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(255) NOT NULL UNIQUE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
