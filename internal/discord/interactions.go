package discord

import (
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"
)

const EmbedColor = 0x50c470

func infoEmbed(title, desc string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: truncate(desc), Color: EmbedColor}
}

func errorEmbed(desc string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "Error", Description: desc, Color: EmbedColor}
}

// --- Interaction responses ---

// RespondEmbedEphemeral sends an ephemeral embed response to an interaction.
func RespondEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// RespondDeferred acknowledges an interaction publicly without an immediate reply.
func RespondDeferred(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

// --- Followup messages ---

// FollowupEmbed sends a public embed followup message.
func FollowupEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	return err
}

// FollowupEmbedWithCover sends a public embed followup with a local image
// attached as its thumbnail. A missing file sends the embed without one.
func FollowupEmbedWithCover(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, coverPath string) error {
	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
	f, name := openCover(coverPath)
	if f != nil {
		defer f.Close()
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: "attachment://" + name}
		params.Files = []*discordgo.File{{Name: name, ContentType: "image/jpeg", Reader: f}}
	}
	_, err := s.FollowupMessageCreate(i.Interaction, true, params)
	return err
}

// --- Channel messages (non-interaction) ---

// MessageEmbedWithCover sends an embed to a channel with a local image
// attached as its thumbnail.
func MessageEmbedWithCover(s *discordgo.Session, channelID string, embed *discordgo.MessageEmbed, coverPath string) error {
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	f, name := openCover(coverPath)
	if f != nil {
		defer f.Close()
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: "attachment://" + name}
		msg.Files = []*discordgo.File{{Name: name, ContentType: "image/jpeg", Reader: f}}
	}
	_, err := s.ChannelMessageSendComplex(channelID, msg)
	return err
}

// MessageEmbed sends an embed to a channel.
func MessageEmbed(s *discordgo.Session, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := s.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func openCover(path string) (*os.File, string) {
	if path == "" {
		return nil, ""
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ""
	}
	return f, "cover" + filepath.Ext(path)
}
