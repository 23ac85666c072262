package discord

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
)

const musicCommandName = "music"

// musicCommand is the only slash command the bot registers.
func musicCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        musicCommandName,
		Description: "Control music playback",
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a track, album or playlist, or resume the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "type",
						Description: "Whether the query is a track, album or playlist",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Track", Value: "track"},
							{Name: "Album", Value: "album"},
							{Name: "Playlist", Value: "playlist"},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "query",
						Description: "Search query",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "disco",
				Description: "Play the artist's entire discography",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "artist",
						Description: "The artist to play",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playing the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "View the current queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "page",
						Description: "Page number",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Clear the current queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shuffle",
				Description: "Shuffle the current queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "autoplay",
				Description: "Choose what plays when the queue runs out",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "mode",
						Description: "Autoplay method",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "None", Value: "none"},
							{Name: "Random", Value: "random"},
							{Name: "Similar", Value: "similar"},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "playlists",
				Description: "List all playlists",
			},
		},
	}
}

// registerCommands syncs slash commands for a guild with Discord:
// deletes obsolete ones, creates/updates commands whose definition has changed.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}

	def := musicCommand()
	hashes := b.loadCommandHashes(guildID)

	registered := false
	for _, rc := range remote {
		if rc.Name == def.Name {
			registered = true
			continue
		}
		b.log.Info("Deleting obsolete command", "guild", guildID, "name", rc.Name)
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			b.log.Error("Failed to delete command", "guild", guildID, "name", rc.Name, "err", err)
			continue
		}
		delete(hashes, rc.Name)
		time.Sleep(25 * time.Millisecond) // stay well under Discord's rate limit
	}

	h := hashCommand(def)
	if registered && hashes[def.Name] == h {
		b.saveCommandHashes(guildID, hashes)
		return nil
	}

	if _, err := b.dg.ApplicationCommandCreate(appID, guildID, def); err != nil {
		return fmt.Errorf("failed to register %s: %w", def.Name, err)
	}
	b.log.Info("Registered command", "guild", guildID, "name", def.Name)
	hashes[def.Name] = h
	b.saveCommandHashes(guildID, hashes)
	return nil
}

// appID returns the bot's application ID, fetching from Discord if not cached in State.
func (b *Bot) appID() (string, error) {
	if b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

// --- Command hash cache ---

func (b *Bot) commandHashPath(guildID string) string {
	return filepath.Join(b.cfg.CacheDir, "commands", guildID+".json")
}

func (b *Bot) loadCommandHashes(guildID string) map[string]string {
	out := make(map[string]string)
	if data, err := os.ReadFile(b.commandHashPath(guildID)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

func (b *Bot) saveCommandHashes(guildID string, hashes map[string]string) {
	path := b.commandHashPath(guildID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		b.log.Warn("Failed to create command cache dir", "err", err)
		return
	}
	if data, err := json.MarshalIndent(hashes, "", "  "); err == nil {
		_ = os.WriteFile(path, data, 0644)
	}
}
