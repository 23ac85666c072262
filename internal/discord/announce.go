package discord

import (
	"github.com/keshon/discodrome/internal/music/player"
)

// listenPlayerStatus posts playback changes of p to the channel its last
// /music command came from. Runs for the lifetime of the bot.
func (b *Bot) listenPlayerStatus(p *player.Player) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case ev := <-p.Events:
			b.announce(p.GuildID(), ev)
		}
	}
}

func (b *Bot) announce(guildID string, ev player.StatusEvent) {
	channelID, ok := b.announceChannel(guildID)
	if !ok {
		return
	}

	var err error
	switch ev.Status {
	case player.StatusPlaying:
		cover := b.client.CoverArt(b.ctx, ev.Track.CoverID, b.cfg.CoverSize)
		err = MessageEmbedWithCover(b.dg, channelID, infoEmbed("Now Playing:", trackLine(ev.Track)), cover)
	case player.StatusFinished:
		err = MessageEmbed(b.dg, channelID, infoEmbed("Playback ended", ""))
	case player.StatusError:
		err = MessageEmbed(b.dg, channelID, errorEmbed("Failed to play **"+ev.Track.Title+"**."))
	default:
		// added, skipped and stopped are answered by the command itself
		return
	}
	if err != nil {
		b.log.Warn("Failed to announce", "guild", guildID, "status", ev.Status, "err", err)
	}
}
