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

// Package discord posts refresh failure alerts to a Discord channel.
package discord

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lucasduport/channel-resolver/pkg/utils"
)

// Common embed colors
const (
	colorWarn  = 0xFFC107 // amber
	colorError = 0xDC3545 // red
)

// DefaultCooldown suppresses repeats of the same alert for one channel.
const DefaultCooldown = 6 * time.Hour

// Notifier sends failure alerts through the REST API of a bot account. It
// never opens a gateway connection.
type Notifier struct {
	session   *discordgo.Session
	channelID string
	cooldown  time.Duration
	send      func(channelID string, embed *discordgo.MessageEmbed) error
	now       func() time.Time

	mu   sync.Mutex
	last map[string]sentAlert
}

type sentAlert struct {
	message string
	at      time.Time
}

// NewNotifierFromEnv builds a notifier from DISCORD_BOT_TOKEN and
// DISCORD_ALERT_CHANNEL_ID. It returns nil, nil when either is unset.
func NewNotifierFromEnv() (*Notifier, error) {
	token := os.Getenv("DISCORD_BOT_TOKEN")
	channelID := os.Getenv("DISCORD_ALERT_CHANNEL_ID")
	if token == "" || channelID == "" {
		utils.InfoLog("Discord alerts disabled (DISCORD_BOT_TOKEN or DISCORD_ALERT_CHANNEL_ID not set)")
		return nil, nil
	}
	n, err := NewNotifier(token, channelID)
	if err != nil {
		return nil, err
	}
	n.cooldown = utils.GetEnvDurationOrDefault("DISCORD_ALERT_COOLDOWN", DefaultCooldown)
	return n, nil
}

// NewNotifier returns a notifier posting to channelID as the bot owning token.
func NewNotifier(token, channelID string) (*Notifier, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}
	n := &Notifier{
		session:   dg,
		channelID: channelID,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		last:      make(map[string]sentAlert),
	}
	n.send = func(channelID string, embed *discordgo.MessageEmbed) error {
		_, err := dg.ChannelMessageSendEmbed(channelID, embed)
		return err
	}
	utils.InfoLog("Discord alerts enabled for channel %s", channelID)
	return n, nil
}

// NotifyFailure posts one alert for a failed refresh. The same error for the
// same channel is sent at most once per cooldown.
func (n *Notifier) NotifyFailure(ctx context.Context, channelID string, err error) error {
	if n == nil || err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	message := utils.Truncate(utils.ErrorMessage(err), 1000)
	now := n.now()

	n.mu.Lock()
	prev, seen := n.last[channelID]
	if seen && prev.message == message && now.Sub(prev.at) < n.cooldown {
		n.mu.Unlock()
		utils.DebugLog("Discord: suppressing repeated alert for channel %s", channelID)
		return nil
	}
	n.last[channelID] = sentAlert{message: message, at: now}
	n.mu.Unlock()

	color := colorError
	if seen {
		color = colorWarn
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Channel %s refresh failed", channelID),
		Description: "```" + message + "```",
		Color:       color,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Channel", Value: channelID, Inline: true},
		},
	}
	if err := n.send(n.channelID, embed); err != nil {
		utils.ErrorLog("Discord: failed to send alert for channel %s: %v", channelID, err)
		n.mu.Lock()
		delete(n.last, channelID)
		n.mu.Unlock()
		return err
	}
	utils.DebugLog("Discord: alert sent for channel %s", channelID)
	return nil
}

// Close releases the Discord session.
func (n *Notifier) Close() {
	if n == nil || n.session == nil {
		return
	}
	if err := n.session.Close(); err != nil {
		utils.DebugLog("Discord: closing session: %v", err)
	}
}
