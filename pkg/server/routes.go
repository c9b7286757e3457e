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
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/lucasduport/channel-resolver/pkg/types"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

func (s *Server) routes(r *gin.Engine) {
	r.GET("/api/channel/:id", s.getChannel)
	r.POST("/admin/refresh", s.refreshAll)
	r.GET("/status", s.status)
	r.GET("/health", s.health)
	r.GET("/playlist.m3u", s.getM3U)
	r.GET("/history/:id", s.history)

	if s.Snapshots != nil {
		utils.DebugLog("Debug HTML endpoint enabled at /debug/html-{id}")
		// gin cannot mix a literal prefix and a parameter in one segment
		r.GET("/debug/:name", s.debugHTML)
	}
}

// recoverJSON turns a handler panic into a logged 500 JSON answer.
func recoverJSON() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				utils.ErrorLog("API PANIC RECOVERED: %v\nStack trace: %s", err, debug.Stack())
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, types.ErrorResponse{
					Error: fmt.Sprintf("Internal server error: %v", err),
				})
			}
		}()
		ctx.Next()
	}
}
