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

package cache

import (
	"context"
	"time"

	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// DefaultRefreshInterval is the period of the background sweep.
const DefaultRefreshInterval = time.Hour

// Scheduler runs RefreshAll once at start and then on a fixed period until
// its context ends.
type Scheduler struct {
	coordinator *Coordinator
	interval    time.Duration
	runOnStart  bool
	done        chan struct{}
}

// NewScheduler returns an unstarted scheduler.
func NewScheduler(coordinator *Coordinator, interval time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{
		coordinator: coordinator,
		interval:    interval,
		runOnStart:  runOnStart,
		done:        make(chan struct{}),
	}
}

// Start launches the refresh loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	utils.InfoLog("Refresh scheduler started (interval %v, sweep on start: %v)", s.interval, s.runOnStart)
	go s.loop(ctx)
}

// Done is closed once the loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.runOnStart {
		s.sweep(ctx)
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			utils.InfoLog("Refresh scheduler stopped")
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if _, err := s.coordinator.RefreshAll(ctx); err != nil {
		utils.WarnLog("Scheduled refresh incomplete: %v", err)
	}
}
