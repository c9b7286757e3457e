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

package channels

import (
	"reflect"
	"testing"

	"github.com/lucasduport/channel-resolver/pkg/types"
)

func TestTableOrderAndLookup(t *testing.T) {
	table := New([]types.ChannelDescriptor{
		{ID: "12", SourceURL: "https://a.example/12"},
		{ID: "news", SourceURL: "https://a.example/news"},
		{ID: "2", SourceURL: "https://a.example/2"},
		{ID: "12", SourceURL: "https://a.example/duplicate"},
		{ID: "", SourceURL: "https://a.example/empty"},
	})

	if got, want := table.IDs(), []string{"2", "12", "news"}; !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}

	d, ok := table.Lookup("12")
	if !ok || d.SourceURL != "https://a.example/12" {
		t.Errorf("Lookup(12) = %+v, %v; first descriptor should win", d, ok)
	}
	if _, ok := table.Lookup("99"); ok {
		t.Error("Lookup(99) should fail")
	}
}

func TestDefaultTableHasExampleChannels(t *testing.T) {
	table := Default()
	for _, id := range []string{"10", "12"} {
		if _, ok := table.Lookup(id); !ok {
			t.Errorf("default table is missing channel %s", id)
		}
	}
}
