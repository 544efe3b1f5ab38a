package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/sprint"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
)

func (b *Bot) sprintSet(ctx context.Context, _ *discordgo.Interaction, st studio.Studio, opts discord.Options) (*discordgo.InteractionResponse, error) {
	team, _ := opts.Int("team")
	n, _ := opts.Int("sprint")
	desc, _ := opts.String("description")

	f, err := sprint.Validate(sprint.Feature{StudioID: st.ID, Team: int(team), Sprint: int(n), Description: desc})
	if err != nil {
		return discord.Ephemeral(fmt.Sprintf("Team and sprint must be positive and the description 1-%d characters.", sprint.MaxDescriptionLen)), nil
	}
	f, err = b.sprints.Upsert(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("save feature: %w", err)
	}
	return discord.Ephemeral(fmt.Sprintf("Saved the sprint %d feature for team %d.", f.Sprint, f.Team)), nil
}

func (b *Bot) sprintShow(ctx context.Context, _ *discordgo.Interaction, st studio.Studio, opts discord.Options) (*discordgo.InteractionResponse, error) {
	n, _ := opts.Int("sprint")
	if n < 1 {
		return discord.Ephemeral("Sprint must be positive."), nil
	}
	if team, ok := opts.Int("team"); ok {
		f, err := b.sprints.Get(ctx, st.ID, int(team), int(n))
		if errors.Is(err, sprint.ErrNotFound) {
			return discord.Ephemeral(fmt.Sprintf("Team %d has no feature recorded for sprint %d.", team, n)), nil
		}
		if err != nil {
			return nil, fmt.Errorf("load feature: %w", err)
		}
		return discord.Reply("", featureEmbed(st, int(n), []sprint.Feature{f})), nil
	}

	fs, err := b.sprints.ListBySprint(ctx, st.ID, int(n))
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	if len(fs) == 0 {
		return discord.Ephemeral(fmt.Sprintf("No features recorded for sprint %d.", n)), nil
	}
	return discord.Reply("", featureEmbed(st, int(n), fs)), nil
}

// Embeds hold at most 25 fields.
const maxEmbedFields = 25

func featureEmbed(st studio.Studio, n int, fs []sprint.Feature) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🏃 Studio %d - Sprint %d Features", st.Number, n),
		Color: discord.ColorGreen,
	}
	for i, f := range fs {
		if i == maxEmbedFields {
			e.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d more not shown", len(fs)-i)}
			break
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: fmt.Sprintf("Team %d", f.Team), Value: f.Description})
	}
	return e
}
