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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// Limits for history reads.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// ErrNotInitialized is returned by every call on a nil or closed manager.
var ErrNotInitialized = errors.New("database not initialized")

// RecordResolution appends one resolution outcome.
func (m *DBManager) RecordResolution(ctx context.Context, rec types.ResolutionRecord) error {
	if !m.IsInitialized() {
		return ErrNotInitialized
	}
	utils.DebugLog("Database: Recording resolution %s of channel %s", rec.ResolutionID, rec.ChannelID)

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO resolution_history
		  (resolution_id, channel_id, manifest_url, error, observed_requests, duration_ms, trigger, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ResolutionID, rec.ChannelID, nullString(rec.ManifestURL), nullString(rec.Error),
		rec.ObservedRequestCount, rec.DurationMS, rec.Trigger, rec.CreatedAt.UTC())
	if err != nil {
		utils.ErrorLog("Database error recording resolution: %v", err)
		return fmt.Errorf("recording resolution %s: %w", rec.ResolutionID, err)
	}
	return nil
}

// RecentResolutions returns the newest outcomes of channelID, newest first.
func (m *DBManager) RecentResolutions(ctx context.Context, channelID string, limit int) ([]types.ResolutionRecord, error) {
	if !m.IsInitialized() {
		return nil, ErrNotInitialized
	}
	limit = ClampLimit(limit)

	rows, err := m.db.QueryContext(ctx, `
		SELECT resolution_id, channel_id, manifest_url, error, observed_requests, duration_ms, trigger, created_at
		FROM resolution_history
		WHERE channel_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, channelID, limit)
	if err != nil {
		utils.ErrorLog("Database error reading resolution history: %v", err)
		return nil, fmt.Errorf("reading history of channel %s: %w", channelID, err)
	}
	defer rows.Close()

	var out []types.ResolutionRecord
	for rows.Next() {
		var (
			rec       types.ResolutionRecord
			manifest  sql.NullString
			errText   sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&rec.ResolutionID, &rec.ChannelID, &manifest, &errText,
			&rec.ObservedRequestCount, &rec.DurationMS, &rec.Trigger, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		rec.ManifestURL = manifest.String
		rec.Error = errText.String
		rec.CreatedAt = createdAt
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneResolutions deletes outcomes older than maxAge and returns the count.
func (m *DBManager) PruneResolutions(ctx context.Context, maxAge time.Duration) (int64, error) {
	if !m.IsInitialized() {
		return 0, ErrNotInitialized
	}
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM resolution_history WHERE created_at < $1`, time.Now().Add(-maxAge).UTC())
	if err != nil {
		utils.ErrorLog("Database error pruning resolution history: %v", err)
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		utils.InfoLog("Pruned %d resolution history rows older than %v", n, maxAge)
	}
	return n, nil
}

// ClampLimit bounds a requested history size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
