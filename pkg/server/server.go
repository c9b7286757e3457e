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

// Package server exposes the channel cache over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lucasduport/channel-resolver/pkg/channels"
	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// DefaultPort is used when no port is configured.
const DefaultPort = 3000

const shutdownTimeout = 10 * time.Second

// Cache is the channel cache served by the API.
type Cache interface {
	GetOrRefresh(ctx context.Context, channelID string) (types.ChannelStatus, error)
	RefreshAll(ctx context.Context) (map[string]types.CacheView, error)
	Snapshot() map[string]types.CacheView
	Channels() *channels.Table
}

// Snapshotter returns the rendered markup of a channel's embed page.
type Snapshotter interface {
	Snapshot(ctx context.Context, channelID string) (string, error)
}

// HistoryReader reads the resolution journal.
type HistoryReader interface {
	RecentResolutions(ctx context.Context, channelID string, limit int) ([]types.ResolutionRecord, error)
}

// Config represent the server configuration
type Config struct {
	Port int

	Cache Cache
	// Snapshots enables GET /debug/html-{id} when set.
	Snapshots Snapshotter
	// History enables GET /history/{id} when set.
	History HistoryReader
}

// Server is the HTTP API.
type Server struct {
	*Config
	router *gin.Engine
}

// NewServer builds the router for c.
func NewServer(c *Config) *Server {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if !utils.IsDebugEnabled() && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if utils.IsDebugEnabled() {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(recoverJSON())
	router.Use(cors.Default())

	s := &Server{Config: c, router: router}
	s.routes(router)
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured port until ctx ends, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.InfoLog("[channel-resolver] Server is ready and listening on :%d", s.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return utils.PrintErrorAndReturn(err)
	case <-ctx.Done():
	}

	utils.InfoLog("[channel-resolver] Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
