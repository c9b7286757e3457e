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

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

const debugHTMLPrefix = "html-"

// getChannel answers GET /api/channel/:id. Unknown ids never reach the
// resolver.
func (s *Server) getChannel(ctx *gin.Context) {
	id := ctx.Param("id")
	utils.DebugLog("Channel lookup for %s from %s", id, ctx.ClientIP())

	status, err := s.Cache.GetOrRefresh(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorStatus(err), types.ErrorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, status)
}

// refreshAll answers POST /admin/refresh. The sweep outlives a client that
// disconnects halfway.
func (s *Server) refreshAll(ctx *gin.Context) {
	utils.InfoLog("Manual refresh requested from %s", ctx.ClientIP())

	dump, err := s.Cache.RefreshAll(context.WithoutCancel(ctx.Request.Context()))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: utils.PrintErrorAndReturn(err).Error()})
		return
	}
	ctx.JSON(http.StatusOK, types.RefreshResponse{OK: true, Cache: dump})
}

func (s *Server) status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.Cache.Snapshot())
}

func (s *Server) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// debugHTML answers GET /debug/html-:id with the rendered page markup.
func (s *Server) debugHTML(ctx *gin.Context) {
	id, ok := strings.CutPrefix(ctx.Param("name"), debugHTMLPrefix)
	if !ok || id == "" {
		ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not found"})
		return
	}
	if _, known := s.Cache.Channels().Lookup(id); !known {
		ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: (&types.UnknownChannelError{ChannelID: id}).Error()})
		return
	}

	html, err := s.Snapshots.Snapshot(ctx.Request.Context(), id)
	if err != nil {
		utils.WarnLog("Debug snapshot of channel %s failed: %v", id, err)
		ctx.String(errorStatus(err), "error: %v", err)
		return
	}
	ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(html))
}

// history answers GET /history/:id?limit=N.
func (s *Server) history(ctx *gin.Context) {
	id := ctx.Param("id")
	if _, known := s.Cache.Channels().Lookup(id); !known {
		ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: (&types.UnknownChannelError{ChannelID: id}).Error()})
		return
	}
	if s.History == nil {
		ctx.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "resolution history is disabled"})
		return
	}

	limit := 0
	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	records, err := s.History.RecentResolutions(ctx.Request.Context(), id, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: utils.PrintErrorAndReturn(err).Error()})
		return
	}
	if records == nil {
		records = []types.ResolutionRecord{}
	}
	ctx.JSON(http.StatusOK, gin.H{"id": id, "history": records})
}

// errorStatus maps unknown channels to 404 and everything else to 500.
func errorStatus(err error) int {
	var unknown *types.UnknownChannelError
	if errors.As(err, &unknown) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
