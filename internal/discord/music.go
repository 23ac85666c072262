package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"

	"github.com/keshon/discodrome/internal/music/autoplay"
	"github.com/keshon/discodrome/internal/music/player"
	"github.com/keshon/discodrome/internal/subsonic"
)

const commandTimeout = 30 * time.Second

const (
	msgUserNotInVoice = "You are not connected to a voice channel."
	msgBotNotInVoice  = "Not currently connected to a voice channel."
	msgCannotConnect  = "Cannot connect to voice channel."
	msgQueueEmpty     = "Queue is empty."
	msgAlreadyPlaying = "Already playing."
	msgNotPlaying     = "No track is playing."
)

// musicRequest carries one /music invocation through its handler.
type musicRequest struct {
	s      *discordgo.Session
	i      *discordgo.InteractionCreate
	ctx    context.Context
	player *player.Player
	opts   map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func (r *musicRequest) str(name string) string {
	if o, ok := r.opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func (r *musicRequest) reply(title, desc string) error {
	return FollowupEmbed(r.s, r.i, infoEmbed(title, desc))
}

func (r *musicRequest) replyWithCover(title, desc, cover string) error {
	return FollowupEmbedWithCover(r.s, r.i, infoEmbed(title, desc), cover)
}

func (r *musicRequest) fail(desc string) error {
	return FollowupEmbed(r.s, r.i, errorEmbed(desc))
}

func (r *musicRequest) user() string {
	return r.i.Member.DisplayName()
}

// runMusic dispatches a /music subcommand. The interaction is deferred first
// since most subcommands talk to the music server.
func (b *Bot) runMusic(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return RespondEmbedEphemeral(s, i, errorEmbed("Missing subcommand."))
	}
	sub := data.Options[0]

	if err := RespondDeferred(s, i); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	r := &musicRequest{
		s:      s,
		i:      i,
		ctx:    ctx,
		player: b.players.Get(i.GuildID),
		opts:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options)),
	}
	for _, o := range sub.Options {
		r.opts[o.Name] = o
	}
	b.setAnnounceChannel(i.GuildID, i.ChannelID)
	b.log.Debug("Music command", "guild", i.GuildID, "sub", sub.Name, "user", i.Member.User.ID)

	switch sub.Name {
	case "play":
		return b.runPlay(r)
	case "disco":
		return b.runDisco(r)
	case "stop":
		return b.runStop(r)
	case "skip":
		return b.runSkip(r)
	case "queue":
		return b.runQueue(r)
	case "clear":
		r.player.ClearQueue()
		return r.reply(r.user()+" cleared the queue", "")
	case "shuffle":
		r.player.Shuffle()
		return r.reply("Queue shuffled!", "")
	case "autoplay":
		return b.runAutoplay(r)
	case "playlists":
		return b.runPlaylists(r)
	default:
		return r.fail(fmt.Sprintf("Unknown subcommand: %s", sub.Name))
	}
}

// connect joins the invoking user's voice channel unless the bot is
// already connected in the guild.
func (b *Bot) connect(r *musicRequest) bool {
	vs, err := b.FindUserVoiceState(r.i.GuildID, r.i.Member.User.ID)
	if err != nil {
		_ = r.fail(msgUserNotInVoice)
		return false
	}
	if _, err := b.joinVoice(r.i.GuildID, vs.ChannelID); err != nil {
		b.log.Error("Voice join failed", "guild", r.i.GuildID, "err", err)
		_ = r.fail(msgCannotConnect)
		return false
	}
	return true
}

// apiFailure logs err and tells the user about it.
func (b *Bot) apiFailure(r *musicRequest, what string, err error) error {
	var apiErr *subsonic.APIError
	if errors.As(err, &apiErr) {
		b.log.Error("API error", "op", what, "code", apiErr.Code, "message", apiErr.Message)
	} else {
		b.log.Error("Request failed", "op", what, "err", err)
	}
	return r.fail(userError(err))
}

func (b *Bot) playQueue(r *musicRequest) error {
	if err := r.player.PlayQueue(r.ctx); err != nil {
		return b.apiFailure(r, "play queue", err)
	}
	return nil
}

func (b *Bot) runPlay(r *musicRequest) error {
	if !b.connect(r) {
		return nil
	}
	kind, query := r.str("type"), r.str("query")

	if query == "" {
		if r.player.IsPlaying() {
			return r.fail(msgAlreadyPlaying)
		}
		if len(r.player.Queue()) == 0 && r.player.AutoplayMode() == autoplay.ModeNone {
			return r.fail(msgQueueEmpty)
		}
		if err := r.reply("Started queue playback", ""); err != nil {
			b.log.Warn("Followup failed", "err", err)
		}
		return b.playQueue(r)
	}

	var (
		title, desc, coverID string
		err                  error
	)
	switch kind {
	case "track":
		title, desc, coverID, err = b.enqueueTrack(r, query)
	case "album":
		title, desc, coverID, err = b.enqueueAlbum(r, query)
	case "playlist":
		title, desc, coverID, err = b.enqueuePlaylist(r, query)
	default:
		return r.fail("Please provide a query type.")
	}
	switch {
	case errors.Is(err, errNothingFound):
		return r.fail(fmt.Sprintf("No %s found for **%s**.", kind, query))
	case err != nil:
		return b.apiFailure(r, "play "+kind, err)
	}

	cover := b.client.CoverArt(r.ctx, coverID, b.cfg.CoverSize)
	if err := r.replyWithCover(r.user()+" "+title, desc, cover); err != nil {
		b.log.Warn("Followup failed", "err", err)
	}
	return b.playQueue(r)
}

var errNothingFound = errors.New("nothing found")

// The enqueue helpers add the match to the queue and describe what was added.

func (b *Bot) enqueueTrack(r *musicRequest, query string) (title, desc, coverID string, err error) {
	res, err := b.client.Search(r.ctx, query, subsonic.TracksOnly(1))
	if err != nil {
		return "", "", "", err
	}
	if len(res.Tracks) == 0 {
		return "", "", "", errNothingFound
	}
	t := res.Tracks[0]
	r.player.Enqueue(t)
	return "added track to queue", trackLine(t), t.CoverID, nil
}

func (b *Bot) enqueueAlbum(r *musicRequest, query string) (title, desc, coverID string, err error) {
	album, err := b.client.SearchAlbum(r.ctx, query)
	if err != nil {
		return "", "", "", err
	}
	if album == nil {
		return "", "", "", errNothingFound
	}
	r.player.Enqueue(album.Tracks...)
	desc = fmt.Sprintf("**%s** - *%s*\n%d songs (%s)", album.Name, album.Artist, len(album.Tracks), album.DurationString())
	return "added album to queue", desc, album.CoverID, nil
}

func (b *Bot) enqueuePlaylist(r *musicRequest, query string) (title, desc, coverID string, err error) {
	pl, err := b.client.PlaylistByName(r.ctx, query)
	if err != nil {
		return "", "", "", err
	}
	if pl == nil {
		return "", "", "", errNothingFound
	}
	r.player.Enqueue(pl.Tracks...)
	desc = fmt.Sprintf("**%s**\n%d songs (%s)", pl.Name, len(pl.Tracks), pl.DurationString())
	return "added playlist to queue", desc, pl.CoverID, nil
}

func (b *Bot) runDisco(r *musicRequest) error {
	if !b.connect(r) {
		return nil
	}
	artist := r.str("artist")

	albums, err := b.client.Discography(r.ctx, artist)
	if err != nil {
		return b.apiFailure(r, "discography", err)
	}
	if len(albums) == 0 {
		return r.fail(fmt.Sprintf("No discography found for **%s**.", artist))
	}

	r.player.Enqueue(lo.FlatMap(albums, func(a subsonic.Album, _ int) []subsonic.Track {
		return a.Tracks
	})...)
	cover := b.client.CoverArt(r.ctx, albums[0].CoverID, b.cfg.CoverSize)
	if err := r.replyWithCover(r.user()+" added discography to queue", discographyDescription(artist, albums), cover); err != nil {
		b.log.Warn("Followup failed", "err", err)
	}
	return b.playQueue(r)
}

func (b *Bot) runStop(r *musicRequest) error {
	if b.voiceConnection(r.i.GuildID) == nil {
		return r.fail(msgBotNotInVoice)
	}
	if err := r.player.Stop(); errors.Is(err, player.ErrNoTrackPlaying) {
		return r.fail(msgNotPlaying)
	}
	return r.reply("Stopped queue playback", "")
}

func (b *Bot) runSkip(r *musicRequest) error {
	if b.voiceConnection(r.i.GuildID) == nil {
		return r.fail(msgBotNotInVoice)
	}
	err := r.player.Skip(r.ctx)
	switch {
	case errors.Is(err, player.ErrNoTrackPlaying):
		return r.fail(msgNotPlaying)
	case err != nil:
		return b.apiFailure(r, "skip", err)
	}
	return r.reply("Skipped track", "")
}

func (b *Bot) runQueue(r *musicRequest) error {
	page := 1
	if o, ok := r.opts["page"]; ok {
		page = int(o.IntValue())
	}

	var current *subsonic.Track
	if t, ok := r.player.CurrentTrack(); ok {
		current = &t
	}
	desc, shown, pages := queuePage(current, r.player.Queue(), page)

	title := "Queue"
	if pages > 1 {
		title = fmt.Sprintf("Queue (page %d/%d)", shown, pages)
	}
	return r.reply(title, desc)
}

func (b *Bot) runAutoplay(r *musicRequest) error {
	mode, err := autoplay.ParseMode(r.str("mode"))
	if err != nil {
		return r.fail(err.Error())
	}
	r.player.SetAutoplayMode(mode)

	if mode == autoplay.ModeNone {
		err = r.reply("Autoplay disabled by "+r.user(), "")
	} else {
		err = r.reply("Autoplay enabled by "+r.user(), fmt.Sprintf("Autoplay mode: **%s**", mode))
	}
	if err != nil {
		b.log.Warn("Followup failed", "err", err)
	}

	if b.voiceConnection(r.i.GuildID) != nil && !r.player.IsPlaying() {
		return b.playQueue(r)
	}
	return nil
}

func (b *Bot) runPlaylists(r *musicRequest) error {
	playlists, err := b.client.Playlists(r.ctx)
	if err != nil {
		return b.apiFailure(r, "playlists", err)
	}
	if len(playlists) == 0 {
		return r.fail("No playlists found.")
	}
	return r.reply("Available playlists", playlistsDescription(playlists))
}
