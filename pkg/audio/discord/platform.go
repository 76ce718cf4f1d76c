// Package discord implements [audio.Platform] on top of Discord voice
// channels using bwmarrin/discordgo. It decodes participants' Opus packets to
// PCM and encodes the assistant's PCM output back to Opus.
//
// The *discordgo.Session is owned by the bot layer; this package only joins
// and leaves voice channels on it.
package discord

import (
	"context"
	"fmt"

	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

var _ audio.Platform = (*Platform)(nil)

// Platform joins voice channels of one guild.
type Platform struct {
	session *discordgo.Session
	guildID string
}

// New returns a Platform for guildID on session.
func New(session *discordgo.Session, guildID string) *Platform {
	return &Platform{session: session, guildID: guildID}
}

// Connect joins channelID unmuted and undeafened.
func (p *Platform) Connect(ctx context.Context, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := p.session.ChannelVoiceJoin(p.guildID, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	return newConnection(vc, p.session, p.guildID), nil
}
