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

// Package channels holds the compiled-in table of supported channels.
package channels

import (
	"sort"
	"strconv"

	"github.com/lucasduport/channel-resolver/pkg/types"
)

// defaultChannels maps each channel id to the embed page hosting its player.
var defaultChannels = []types.ChannelDescriptor{
	{ID: "10", SourceURL: "https://embed.livehub.example/player/stream-10.php"},
	{ID: "11", SourceURL: "https://embed.livehub.example/player/stream-11.php"},
	{ID: "12", SourceURL: "https://embed.livehub.example/player/stream-12.php"},
	{ID: "13", SourceURL: "https://embed.livehub.example/player/stream-13.php"},
	{ID: "14", SourceURL: "https://watch.sportcast.example/embed/14"},
}

// Table is an immutable id -> descriptor lookup that preserves a stable order.
type Table struct {
	byID  map[string]types.ChannelDescriptor
	order []string
}

// New builds a table from descriptors. Later duplicates of an id are ignored.
func New(descs []types.ChannelDescriptor) *Table {
	t := &Table{byID: make(map[string]types.ChannelDescriptor, len(descs))}
	for _, d := range descs {
		if _, dup := t.byID[d.ID]; dup || d.ID == "" {
			continue
		}
		t.byID[d.ID] = d
		t.order = append(t.order, d.ID)
	}
	sort.SliceStable(t.order, func(i, j int) bool { return lessID(t.order[i], t.order[j]) })
	return t
}

// Default returns the compiled-in channel table.
func Default() *Table {
	return New(defaultChannels)
}

// Lookup returns the descriptor for id.
func (t *Table) Lookup(id string) (types.ChannelDescriptor, bool) {
	d, ok := t.byID[id]
	return d, ok
}

// IDs returns every channel id in table order.
func (t *Table) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of channels.
func (t *Table) Len() int {
	return len(t.order)
}

// lessID orders numeric ids numerically and everything else lexically after them.
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
