package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/keshon/discodrome/internal/config"
	"github.com/keshon/discodrome/internal/music/autoplay"
	"github.com/keshon/discodrome/internal/music/player"
	"github.com/keshon/discodrome/internal/music/stream"
	"github.com/keshon/discodrome/internal/subsonic"
	"github.com/keshon/discodrome/internal/watchdog"
)

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	client   *subsonic.Client
	engine   *autoplay.Engine
	players  *player.Registry
	watchdog *watchdog.Watchdog
	log      *log.Logger

	ctx context.Context

	mu       sync.RWMutex
	channels map[string]string // guild id -> text channel for announcements
}

// StartBot starts the Discord bot and blocks until ctx is cancelled.
func StartBot(ctx context.Context, cfg *config.Config, client *subsonic.Client) error {
	b := &Bot{
		cfg:      cfg,
		client:   client,
		log:      log.Default().WithPrefix("discord"),
		channels: make(map[string]string),
	}
	if err := b.run(ctx, cfg.DiscordToken); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

// run starts the Discord bot
func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.ctx = ctx
	b.engine = autoplay.NewEngine(b.client,
		autoplay.WithSimilarCount(b.cfg.AutoplaySimilarCount),
		autoplay.WithLogger(log.Default().WithPrefix("autoplay")),
	)
	b.players = player.NewRegistry(b.newPlayer)
	b.watchdog = watchdog.New(occupancy{b}, b.players,
		watchdog.WithDelay(b.cfg.IdleTimeout),
		watchdog.WithLogger(log.Default().WithPrefix("watchdog")),
	)

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	b.log.Info("❎ Shutdown signal received. Cleaning up...")
	b.shutdown()
	return nil
}

// configureIntents configures the Discord intents
func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
}

// newPlayer is the registry factory: one sink and one player per guild.
func (b *Bot) newPlayer(guildID string) *player.Player {
	sink := stream.NewDiscordSink(guildID,
		stream.SessionVoice(b.dg),
		stream.FFmpegLink(log.Default().WithPrefix("ffmpeg")),
		log.Default().WithPrefix("stream"),
	)
	p := player.New(guildID, sink, b.client, b.engine, player.WithLogger(log.Default().WithPrefix("player")))
	p.ListenerOnce.Do(func() { go b.listenPlayerStatus(p) })
	return p
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if !b.cfg.InitSlashCommands {
			b.log.Info("Registering slash commands skipped")
			break
		}
		if err := b.registerCommands(g.ID); err != nil {
			b.log.Error("Error registering slash commands", "guild", g.ID, "err", err)
		}
	}
	b.log.Info("✅ Discord bot is running.", "user", r.User.Username, "guilds", len(r.Guilds))
}

// onGuildCreate is called when the bot joins a guild or the guild becomes available
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Debug("Guild available", "guild", g.Guild.ID, "name", g.Guild.Name)
	if !b.cfg.InitSlashCommands {
		return
	}
	if err := b.registerCommands(g.Guild.ID); err != nil {
		b.log.Error("Failed to register commands for guild", "guild", g.Guild.ID, "err", err)
	}
}

// onInteractionCreate is called when an interaction is created
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != musicCommandName {
		b.log.Warn("Unknown command", "name", data.Name)
		return
	}
	if i.GuildID == "" || i.Member == nil {
		_ = RespondEmbedEphemeral(s, i, errorEmbed("This command can only be used in a server."))
		return
	}
	if err := b.runMusic(s, i); err != nil {
		b.log.Error("Error running slash command", "command", data.Name, "err", err)
	}
}

// onVoiceStateUpdate feeds the idle watchdog and resets playback when the bot
// is disconnected from outside.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	guildID := v.GuildID

	if v.UserID == s.State.User.ID && v.ChannelID == "" {
		b.log.Info("Bot left voice channel", "guild", guildID)
		b.players.Reset(guildID)
	}
	b.watchdog.OnMembershipChange(guildID)
}

func (b *Bot) shutdown() {
	b.watchdog.Shutdown()

	for _, guildID := range b.players.Guilds() {
		b.players.Reset(guildID)
	}

	b.dg.RLock()
	conns := make([]*discordgo.VoiceConnection, 0, len(b.dg.VoiceConnections))
	for _, vc := range b.dg.VoiceConnections {
		conns = append(conns, vc)
	}
	b.dg.RUnlock()
	for _, vc := range conns {
		if err := vc.Disconnect(); err != nil {
			b.log.Warn("Failed to leave voice channel", "guild", vc.GuildID, "err", err)
		}
	}
}

// setAnnounceChannel remembers where the guild's last music command came from.
func (b *Bot) setAnnounceChannel(guildID, channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[guildID] = channelID
}

func (b *Bot) announceChannel(guildID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.channels[guildID]
	return ch, ok
}
