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
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jamesnetherton/m3u"
)

// getM3U answers GET /playlist.m3u with every channel that has a URL.
func (s *Server) getM3U(ctx *gin.Context) {
	playlist := s.playlist()

	var buf bytes.Buffer
	if err := marshallInto(&buf, playlist); err != nil {
		ctx.AbortWithError(http.StatusInternalServerError, err) // nolint: errcheck
		return
	}
	ctx.Header("Content-Disposition", `inline; filename="playlist.m3u"`)
	ctx.Data(http.StatusOK, "audio/x-mpegurl", buf.Bytes())
}

// playlist builds the channel playlist in table order.
func (s *Server) playlist() *m3u.Playlist {
	dump := s.Cache.Snapshot()
	p := &m3u.Playlist{}
	for _, id := range s.Cache.Channels().IDs() {
		view, ok := dump[id]
		if !ok || view.URL == nil {
			continue
		}
		p.Tracks = append(p.Tracks, m3u.Track{
			Name:   "Channel " + id,
			Length: -1,
			URI:    *view.URL,
			Tags:   []m3u.Tag{{Name: "tvg-id", Value: id}},
		})
	}
	return p
}

// marshallInto writes playlist in extended M3U format.
func marshallInto(into io.Writer, playlist *m3u.Playlist) error {
	var buffer bytes.Buffer
	buffer.WriteString("#EXTM3U\n")
	for _, track := range playlist.Tracks {
		buffer.WriteString("#EXTINF:")
		buffer.WriteString(fmt.Sprintf("%d", track.Length))
		for _, tag := range track.Tags {
			buffer.WriteString(fmt.Sprintf(" %s=%q", tag.Name, tag.Value))
		}
		buffer.WriteString(fmt.Sprintf(",%s\n%s\n", track.Name, track.URI))
	}
	_, err := into.Write(buffer.Bytes())
	return err
}
