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

package database

import (
	"context"
	"fmt"

	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// initSchema creates database tables if they don't exist
func (m *DBManager) initSchema(ctx context.Context) error {
	utils.InfoLog("Initializing database schema")

	if m == nil || m.db == nil {
		return fmt.Errorf("database not initialized")
	}

	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS resolution_history (
			id SERIAL PRIMARY KEY,
			resolution_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			manifest_url TEXT,
			error TEXT,
			observed_requests INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			trigger TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		utils.ErrorLog("Failed to create resolution_history table: %v", err)
		return fmt.Errorf("failed to create resolution_history table: %w", err)
	}

	if _, err := m.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_resolution_history_channel
		ON resolution_history (channel_id, created_at DESC)
	`); err != nil {
		utils.ErrorLog("Failed to create resolution_history index: %v", err)
		return fmt.Errorf("failed to create resolution_history index: %w", err)
	}

	utils.InfoLog("Database schema initialized")
	return nil
}
