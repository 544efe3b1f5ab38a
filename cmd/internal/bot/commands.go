package bot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/sprint"
)

type option = discordgo.ApplicationCommandOption

func sub(name, desc string, opts ...*option) *option {
	return &option{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: opts}
}

func positive() *float64 {
	v := 1.0
	return &v
}

// Commands returns the slash command definitions registered by Sync.
func Commands() []*discordgo.ApplicationCommand {
	staff := int64(discordgo.PermissionManageServer)
	noDM := false
	return []*discordgo.ApplicationCommand{
		{
			Name:         "studio",
			Description:  "Studio configuration",
			DMPermission: &noDM,
			Options: []*option{
				sub("setup", "Link this server to a studio"),
				sub("info", "Show this server's studio"),
				sub("clean", "Give the student role to members without a role"),
			},
		},
		{
			Name:         "gh",
			Description:  "GitHub accounts and repositories",
			DMPermission: &noDM,
			Options: []*option{
				sub("get", "Show your linked GitHub account"),
				sub("set", "Link your GitHub account",
					&option{Type: discordgo.ApplicationCommandOptionString, Name: "gh_username", Description: "Your GitHub username", Required: true, MaxLength: 39}),
				sub("unset", "Remove a member's GitHub link",
					&option{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to unset", Required: true}),
				sub("refresh", "Reload the organisation's GitHub members"),
				sub("repo_info", "Show the studio repository",
					&option{Type: discordgo.ApplicationCommandOptionString, Name: "repo", Description: "Another repository of the organisation", Autocomplete: true}),
			},
		},
		{
			Name:         "team",
			Description:  "Team roles",
			DMPermission: &noDM,
			Options: []*option{
				sub("set", "Join your team",
					&option{Type: discordgo.ApplicationCommandOptionString, Name: "team", Description: "Team role", Required: true, Autocomplete: true}),
			},
		},
		{
			Name:         "sprint",
			Description:  "Sprint features",
			DMPermission: &noDM,
			Options: []*option{
				sub("set", "Record a team's feature for a sprint",
					&option{Type: discordgo.ApplicationCommandOptionInteger, Name: "team", Description: "Team number", Required: true, MinValue: positive()},
					&option{Type: discordgo.ApplicationCommandOptionInteger, Name: "sprint", Description: "Sprint number", Required: true, MinValue: positive()},
					&option{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "What the team is building", Required: true, MaxLength: sprint.MaxDescriptionLen}),
				sub("show", "Show the features of a sprint",
					&option{Type: discordgo.ApplicationCommandOptionInteger, Name: "sprint", Description: "Sprint number", Required: true, MinValue: positive()},
					&option{Type: discordgo.ApplicationCommandOptionInteger, Name: "team", Description: "Only this team", MinValue: positive()}),
			},
		},
		{
			Name:                     "admin",
			Description:              "Bot administration",
			DefaultMemberPermissions: &staff,
			DMPermission:             &noDM,
			Options:                  []*option{sub("sync", "Register the slash commands")},
		},
		{
			Name:        "say",
			Description: "Say things",
			Options: []*option{
				sub("hello", "Say a thing",
					&option{Type: discordgo.ApplicationCommandOptionString, Name: "thing_to_say", Description: "What to say", Required: true}),
			},
		},
	}
}
