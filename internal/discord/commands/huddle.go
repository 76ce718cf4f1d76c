// Package commands implements huddle's Discord slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/huddle/internal/app"
	"github.com/MrWong99/huddle/internal/discord"
)

// commandTimeout bounds joining and leaving a voice channel.
const commandTimeout = 30 * time.Second

// CallController starts, stops and inspects the voice call.
// *app.SessionManager implements it.
type CallController interface {
	Start(ctx context.Context, channelID, startedBy string) (app.CallInfo, error)
	Stop(ctx context.Context) error
	Status() (app.Status, error)
}

// VoiceChannelFunc returns the voice channel a user is connected to.
type VoiceChannelFunc func(userID string) (string, error)

// HuddleCommands holds the dependencies for the /huddle command group.
type HuddleCommands struct {
	calls        CallController
	perms        *discord.PermissionChecker
	voiceChannel VoiceChannelFunc
}

// NewHuddleCommands creates the /huddle handlers.
func NewHuddleCommands(calls CallController, perms *discord.PermissionChecker, voiceChannel VoiceChannelFunc) *HuddleCommands {
	return &HuddleCommands{calls: calls, perms: perms, voiceChannel: voiceChannel}
}

// Register adds the /huddle command and its subcommands to router.
func (hc *HuddleCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("huddle", hc.Definition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Use `/huddle join`, `/huddle leave` or `/huddle status`.")
	})
	router.RegisterHandler("huddle/join", func(s *discordgo.Session, i *discordgo.InteractionCreate) { hc.join(s, i) })
	router.RegisterHandler("huddle/leave", func(s *discordgo.Session, i *discordgo.InteractionCreate) { hc.leave(s, i) })
	router.RegisterHandler("huddle/status", func(s *discordgo.Session, i *discordgo.InteractionCreate) { hc.status(s, i) })
}

// Definition returns the ApplicationCommand definition for Discord.
func (hc *HuddleCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "huddle",
		Description: "Control the voice assistant",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "join",
				Description: "Join a voice channel (defaults to yours)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Voice channel to join",
						ChannelTypes: []discordgo.ChannelType{
							discordgo.ChannelTypeGuildVoice,
							discordgo.ChannelTypeGuildStageVoice,
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "leave",
				Description: "End the call and leave the voice channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show the active call",
			},
		},
	}
}

func (hc *HuddleCommands) join(r discord.Responder, i *discordgo.InteractionCreate) {
	if !hc.perms.IsOperator(i) {
		discord.RespondEphemeral(r, i, "You need the operator role to start a call.")
		return
	}

	userID := interactionUserID(i)
	channelID := subcommandOption(i, "channel")
	if channelID == "" {
		ch, err := hc.voiceChannel(userID)
		if err != nil {
			discord.RespondEphemeral(r, i, "Join a voice channel first or pass one with the `channel` option.")
			return
		}
		channelID = ch
	}

	// Connecting to voice can take longer than the interaction deadline.
	discord.DeferReply(r, i)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	info, err := hc.calls.Start(ctx, channelID, userID)
	switch {
	case errors.Is(err, app.ErrCallActive):
		discord.FollowUp(r, i, "A call is already running. Use `/huddle leave` first.")
		return
	case err != nil:
		discord.FollowUp(r, i, fmt.Sprintf("Failed to join: %v", err))
		return
	}
	discord.FollowUp(r, i, fmt.Sprintf(
		"Joined <#%s> in %s mode.\n**Call ID:** `%s`",
		info.ChannelID, info.Mode, info.CallID,
	))
}

func (hc *HuddleCommands) leave(r discord.Responder, i *discordgo.InteractionCreate) {
	if !hc.perms.IsOperator(i) {
		discord.RespondEphemeral(r, i, "You need the operator role to end a call.")
		return
	}

	st, err := hc.calls.Status()
	if errors.Is(err, app.ErrNoActiveCall) {
		discord.RespondEphemeral(r, i, "No active call.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := hc.calls.Stop(ctx); err != nil {
		if errors.Is(err, app.ErrNoActiveCall) {
			discord.RespondEphemeral(r, i, "No active call.")
			return
		}
		discord.RespondError(r, i, fmt.Errorf("stop call: %w", err))
		return
	}

	discord.RespondEphemeral(r, i, fmt.Sprintf(
		"Call `%s` ended after %s with %d turns.",
		st.CallID, time.Since(st.StartedAt).Truncate(time.Second), st.TotalTurns,
	))
}

func (hc *HuddleCommands) status(r discord.Responder, i *discordgo.InteractionCreate) {
	st, err := hc.calls.Status()
	if err != nil {
		discord.RespondEphemeral(r, i, "No active call.")
		return
	}
	discord.RespondEmbed(r, i, statusEmbed(st))
}

func statusEmbed(st app.Status) *discordgo.MessageEmbed {
	participants := "none"
	if len(st.Participants) > 0 {
		participants = strings.Join(st.Participants, ", ")
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Channel", Value: fmt.Sprintf("<#%s>", st.ChannelID), Inline: true},
		{Name: "Mode", Value: string(st.Mode), Inline: true},
		{Name: "Agent", Value: st.Agent, Inline: true},
		{Name: "Participants", Value: participants},
		{Name: "Turns", Value: fmt.Sprintf("%d", st.TotalTurns), Inline: true},
		{Name: "Activations", Value: fmt.Sprintf("%d", st.Activations), Inline: true},
		{Name: "Gate", Value: st.State.String(), Inline: true},
	}
	if st.ActiveRole != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Active role", Value: st.ActiveRole, Inline: true})
	}
	return &discordgo.MessageEmbed{
		Title:     "Huddle call",
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: "Call " + st.CallID},
		Timestamp: st.StartedAt.Format(time.RFC3339),
	}
}

// subcommandOption returns the string value of a subcommand option, or "".
func subcommandOption(i *discordgo.InteractionCreate, name string) string {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return ""
	}
	for _, opt := range data.Options[0].Options {
		if opt.Name != name {
			continue
		}
		if v, ok := opt.Value.(string); ok {
			return v
		}
	}
	return ""
}

// interactionUserID extracts the user ID from an interaction in both guild
// (Member) and direct message (User) contexts.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
