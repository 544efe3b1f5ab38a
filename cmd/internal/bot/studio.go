package bot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
)

const studioTimeLayout = "2006-01-02 15:04 MST"

func (b *Bot) studioInfo(_ context.Context, _ *discordgo.Interaction, st studio.Studio, _ discord.Options) (*discordgo.InteractionResponse, error) {
	repo := st.RepoName
	if b.code != nil {
		repo = fmt.Sprintf("[%s](%s)", st.RepoName, b.code.RepoURL(st.RepoName))
	}
	lines := []string{
		fmt.Sprintf("• **Studio Number:** %d", st.Number),
		fmt.Sprintf("• **Year:** %d", st.Year),
		fmt.Sprintf("• **Repository:** %s", repo),
		fmt.Sprintf("• **Last Updated:** %s", st.UpdatedAt.UTC().Format(studioTimeLayout)),
		fmt.Sprintf("• **Created:** %s", st.CreatedAt.UTC().Format(studioTimeLayout)),
	}
	return discord.Reply("", &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎓 Studio %d - %d Bot", st.Number, st.Year),
		Description: strings.Join(lines, "\n"),
		Color:       discord.ColorBlue,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Studio ID: " + strconv.Itoa(st.Number)},
	}), nil
}

// studioClean gives the student role to every human member who holds neither it nor a tutor role.
func (b *Bot) studioClean(ctx context.Context, in *discordgo.Interaction, _ discord.Options) (*discordgo.InteractionResponse, error) {
	roles, err := b.api.GuildRoles(ctx, in.GuildID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	var student string
	var tutors []string
	for _, r := range roles {
		switch {
		case r.Name == b.course.StudentRole:
			student = r.ID
		case slices.Contains(b.course.TutorRoles, r.Name):
			tutors = append(tutors, r.ID)
		}
	}
	if student == "" {
		return discord.Ephemeral(fmt.Sprintf("Student role '%s' not found.", b.course.StudentRole)), nil
	}

	members, err := b.api.GuildMembers(ctx, in.GuildID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	n := 0
	for _, m := range members {
		if m.User == nil || m.User.Bot || discord.HasRole(m, student) || slices.ContainsFunc(tutors, func(id string) bool { return discord.HasRole(m, id) }) {
			continue
		}
		if err := b.api.AddMemberRole(ctx, in.GuildID, m.User.ID, student, "studio clean-up"); err != nil {
			b.log.Warn("bot.studio.clean.assign.fail", "guild_id", in.GuildID, "user_id", m.User.ID, "err", err)
			continue
		}
		n++
	}
	b.log.Info("bot.studio.clean", "guild_id", in.GuildID, "assigned", n)
	return discord.Ephemeral(fmt.Sprintf("Studio clean-up complete. Assigned '%s' to %d member(s).", b.course.StudentRole, n)), nil
}
