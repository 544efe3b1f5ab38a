package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
)

func (b *Bot) teamRoles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	roles, err := b.api.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := roles[:0:0]
	for _, r := range roles {
		if b.isTeamRole(r.Name) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Bot) teamSet(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
	team, _ := opts.String("team")
	team = strings.TrimSpace(team)
	roles, err := b.teamRoles(ctx, in.GuildID)
	if err != nil {
		return nil, err
	}

	if in.Member != nil {
		for _, r := range roles {
			if discord.HasRole(in.Member, r.ID) {
				return discord.Ephemeral(fmt.Sprintf("You've already been assigned to '%s'. Ask a tutor to remove it before assigning a new one.", r.Name)), nil
			}
		}
	}

	var target *discordgo.Role
	for _, r := range roles {
		if r.Name == team {
			target = r
			break
		}
	}
	if target == nil {
		return discord.Ephemeral(fmt.Sprintf("Team role '%s' not found.", team)), nil
	}

	userID := discord.Invoker(in).ID
	if err := b.api.AddMemberRole(ctx, in.GuildID, userID, target.ID, "team self-assignment"); err != nil {
		var apiErr *discord.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
			return discord.Ephemeral("I do not have permission to assign that role."), nil
		}
		return nil, fmt.Errorf("assign team role: %w", err)
	}
	b.log.Info("bot.team.assigned", "guild_id", in.GuildID, "user_id", userID, "team", target.Name)
	return discord.Ephemeral(fmt.Sprintf("You have been assigned to **%s**.", target.Name)), nil
}

// teamAutocomplete suggests team roles whose name contains the typed text.
func (b *Bot) teamAutocomplete(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
	typed := strings.ToLower(focusedText(opts))

	roles, err := b.teamRoles(ctx, in.GuildID)
	if err != nil {
		return nil, err
	}
	choices := []*discordgo.ApplicationCommandOptionChoice{}
	for _, r := range roles {
		if typed == "" || strings.Contains(strings.ToLower(r.Name), typed) {
			choices = append(choices, discord.Choice(r.Name))
		}
	}
	return discord.Autocomplete(choices), nil
}

// focusedText returns the trimmed text of the option being typed.
func focusedText(opts discord.Options) string {
	f, ok := opts.Focused()
	if !ok {
		return ""
	}
	s, _ := discord.Options{f}.String(f.Name)
	return strings.TrimSpace(s)
}
