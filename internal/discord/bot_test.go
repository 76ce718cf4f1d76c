package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func memberWithRoles(roles ...string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{Roles: roles},
		},
	}
}

func TestPermissionChecker_IsOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		roleID string
		inter  *discordgo.InteractionCreate
		want   bool
	}{
		{
			name:   "member with operator role",
			roleID: "role-123",
			inter:  memberWithRoles("role-456", "role-123"),
			want:   true,
		},
		{
			name:   "member without operator role",
			roleID: "role-123",
			inter:  memberWithRoles("role-456", "role-789"),
			want:   false,
		},
		{
			name:   "no role configured allows everyone",
			roleID: "",
			inter:  memberWithRoles("role-456"),
			want:   true,
		},
		{
			name:   "direct message has no member",
			roleID: "role-123",
			inter:  &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}},
			want:   false,
		},
		{
			name:   "member with no roles",
			roleID: "role-123",
			inter:  memberWithRoles(),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewPermissionChecker(tt.roleID).IsOperator(tt.inter)
			if got != tt.want {
				t.Errorf("IsOperator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandRouter_ApplicationCommands_Dedup(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	cmd := &discordgo.ApplicationCommand{Name: "huddle"}
	noop := func(*discordgo.Session, *discordgo.InteractionCreate) {}
	r.RegisterCommand("huddle/join", cmd, noop)
	r.RegisterCommand("huddle/leave", cmd, noop)
	r.RegisterHandler("huddle/status", noop)

	cmds := r.ApplicationCommands()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Name != "huddle" {
		t.Errorf("command name = %q, want %q", cmds[0].Name, "huddle")
	}
}

func commandInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func TestCommandRouter_HandleDispatchesSubcommand(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	var got []string
	r.RegisterCommand("huddle", &discordgo.ApplicationCommand{Name: "huddle"}, func(*discordgo.Session, *discordgo.InteractionCreate) {
		got = append(got, "huddle")
	})
	r.RegisterHandler("huddle/status", func(*discordgo.Session, *discordgo.InteractionCreate) {
		got = append(got, "huddle/status")
	})

	r.Handle(nil, commandInteraction("huddle", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "status",
		Type: discordgo.ApplicationCommandOptionSubCommand,
	}))
	r.Handle(nil, commandInteraction("huddle"))
	// Component interactions are ignored.
	r.Handle(nil, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Type: discordgo.InteractionMessageComponent}})

	if len(got) != 2 || got[0] != "huddle/status" || got[1] != "huddle" {
		t.Errorf("dispatched %v, want [huddle/status huddle]", got)
	}
}

func TestInteractionKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data discordgo.ApplicationCommandInteractionData
		want string
	}{
		{
			name: "top level",
			data: discordgo.ApplicationCommandInteractionData{Name: "huddle"},
			want: "huddle",
		},
		{
			name: "subcommand",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "huddle",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "join", Type: discordgo.ApplicationCommandOptionSubCommand},
				},
			},
			want: "huddle/join",
		},
		{
			name: "plain option is not a subcommand",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "huddle",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel},
				},
			},
			want: "huddle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := interactionKey(tt.data); got != tt.want {
				t.Errorf("interactionKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
