package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var errUserNotInVoice = errors.New("user not in any voice channel")

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// FindUserVoiceState finds the voice state of a user
func (b *Bot) FindUserVoiceState(guildID, userID string) (*VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	b.dg.State.RLock()
	defer b.dg.State.RUnlock()
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, errUserNotInVoice
}

// voiceConnection returns the bot's live voice connection in the guild, or nil.
func (b *Bot) voiceConnection(guildID string) *discordgo.VoiceConnection {
	b.dg.RLock()
	defer b.dg.RUnlock()
	return b.dg.VoiceConnections[guildID]
}

// joinVoice makes sure the bot is connected in the guild. An existing
// connection is reused even if it is in another channel.
func (b *Bot) joinVoice(guildID, channelID string) (*discordgo.VoiceConnection, error) {
	if vc := b.voiceConnection(guildID); vc != nil {
		return vc, nil
	}
	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	b.log.Info("Joined voice channel", "guild", guildID, "channel", channelID)
	return vc, nil
}

// occupancy answers the watchdog's questions from the session state.
type occupancy struct {
	b *Bot
}

func (o occupancy) Members(guildID string) (int, bool) {
	vc := o.b.voiceConnection(guildID)
	if vc == nil {
		return 0, false
	}
	vc.RLock()
	channelID := vc.ChannelID
	vc.RUnlock()
	if channelID == "" {
		return 0, false
	}

	guild, err := o.b.dg.State.Guild(guildID)
	if err != nil {
		return 0, true
	}
	self := o.b.dg.State.User.ID

	o.b.dg.State.RLock()
	defer o.b.dg.State.RUnlock()
	others := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != self {
			others++
		}
	}
	return others, true
}

func (o occupancy) Disconnect(guildID string) error {
	vc := o.b.voiceConnection(guildID)
	if vc == nil {
		return nil
	}
	if err := vc.Disconnect(); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	o.b.log.Info("Left idle voice channel", "guild", guildID)
	return nil
}
