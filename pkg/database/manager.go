/*
 * channel-resolver keeps live channel manifest URLs fresh and serves them.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package database journals resolution outcomes to PostgreSQL. The journal is
// an audit trail only; the cache never reads from it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// DBManager handles database operations
type DBManager struct {
	db          *sql.DB
	initialized bool
}

// ConnString builds the lib/pq connection string from the DB_* variables.
func ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		utils.GetEnvOrDefault("DB_HOST", "localhost"),
		utils.GetEnvOrDefault("DB_PORT", "5432"),
		utils.GetEnvOrDefault("DB_NAME", "channelresolver"),
		utils.GetEnvOrDefault("DB_USER", "postgres"),
		utils.GetEnvOrDefault("DB_PASSWORD", ""),
		utils.GetEnvOrDefault("DB_SSLMODE", "disable"),
	)
}

// NewDBManager connects to PostgreSQL and creates the schema.
func NewDBManager(ctx context.Context, connStr string) (*DBManager, error) {
	utils.InfoLog("Initializing PostgreSQL database connection")
	utils.DebugLog("Connecting to PostgreSQL: host=%s port=%s dbname=%s user=%s",
		utils.GetEnvOrDefault("DB_HOST", "localhost"), utils.GetEnvOrDefault("DB_PORT", "5432"),
		utils.GetEnvOrDefault("DB_NAME", "channelresolver"), utils.GetEnvOrDefault("DB_USER", "postgres"))

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		utils.ErrorLog("Failed to connect to database: %v", err)
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	utils.InfoLog("Database connection successful")

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	manager := &DBManager{db: db}
	if err := manager.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	manager.initialized = true
	return manager, nil
}

// IsInitialized returns whether the database is initialized
func (m *DBManager) IsInitialized() bool {
	return m != nil && m.initialized && m.db != nil
}

// Close closes the database connection
func (m *DBManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	utils.InfoLog("Closing database connection")
	return m.db.Close()
}
