package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/member"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
)

func (b *Bot) ghGet(ctx context.Context, in *discordgo.Interaction, _ discord.Options) (*discordgo.InteractionResponse, error) {
	if b.code == nil {
		return discord.Ephemeral(msgNoCodeHost), nil
	}
	u, ok, err := b.members.Get(ctx, discord.Invoker(in).ID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if !ok || !u.Linked() {
		return discord.Ephemeral("You haven't added your github yet with `/gh set`."), nil
	}
	acct, ok, err := b.code.Account(u.GitHubID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !ok {
		return discord.Ephemeral("The linked github account cannot be found."), nil
	}

	embed := &discordgo.MessageEmbed{
		Title:       "GitHub: " + acct.Login,
		URL:         acct.URL,
		Description: "Your linked GitHub account!",
		Color:       discord.ColorBlurple,
		Fields:      []*discordgo.MessageEmbedField{{Name: "👤 Username", Value: acct.Login, Inline: true}},
	}
	if acct.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: acct.AvatarURL}
	}
	if acct.Bio != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "📝 Bio", Value: acct.Bio})
	}
	if !acct.CreatedAt.IsZero() {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "GitHub since " + acct.CreatedAt.Format("January 2006") + " 🚀"}
	}
	return discord.Reply("", embed), nil
}

func (b *Bot) ghSet(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
	if b.code == nil {
		return discord.Ephemeral(msgNoCodeHost), nil
	}
	login, _ := opts.String("gh_username")
	login = strings.TrimSpace(login)
	ghID, ok := b.code.MemberID(login)
	if !ok {
		return discord.Ephemeral(fmt.Sprintf("The github user %s chosen doesn't exist, ask the tutors to reload the cached users if this is a mistake", login)), nil
	}

	dec, err := b.members.Link(ctx, discord.Invoker(in).ID, ghID, b.presentIn(in.GuildID))
	if err != nil {
		return nil, fmt.Errorf("link github: %w", err)
	}
	switch dec.Result {
	case member.AlreadyYours:
		return discord.Ephemeral("You are already associated with that github user"), nil
	case member.HeldByOther:
		return discord.Ephemeral("That github user is already associated with " + discord.Mention(dec.Holder)), nil
	case member.HolderLeft:
		return discord.Ephemeral("That github user is associated with a user who has left - unsetting them now, try again in a bit"), nil
	case member.RequesterLinked:
		return discord.Ephemeral("You already are associated to a github account, ask staff to unset it for you"), nil
	default:
		return discord.Ephemeral(fmt.Sprintf("You have now set your github account to '%s'.", login)), nil
	}
}

// presentIn reports membership of guildID. A missing member counts as departed.
func (b *Bot) presentIn(guildID string) member.PresenceFunc {
	return func(ctx context.Context, userID string) (bool, error) {
		_, err := b.api.GuildMember(ctx, guildID, userID)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, discord.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

func (b *Bot) ghUnset(ctx context.Context, _ *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
	userID, ok := opts.String("member")
	if !ok || userID == "" {
		return discord.Ephemeral("Pick a member to unset."), nil
	}
	u, ok, err := b.members.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if !ok {
		return discord.Ephemeral(discord.Mention(userID) + " hasn't got anything set up yet."), nil
	}
	if !u.Linked() {
		return discord.Ephemeral(fmt.Sprintf("User '%s' hasn't got a github user associated with them.", discord.Mention(userID))), nil
	}
	if _, err := b.members.Unlink(ctx, userID); err != nil {
		return nil, fmt.Errorf("unlink github: %w", err)
	}
	return discord.Ephemeral(discord.Mention(userID) + " has been unassociated from a github user."), nil
}

func (b *Bot) ghRefresh(ctx context.Context, _ *discordgo.Interaction, _ discord.Options) (*discordgo.InteractionResponse, error) {
	if b.code == nil {
		return discord.Ephemeral(msgNoCodeHost), nil
	}
	n, err := b.code.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh members: %w", err)
	}
	return discord.Ephemeral(fmt.Sprintf("All github members in the org have been refreshed (%d).", n)), nil
}

// ghRepoInfo shows the studio repository, or the repository named by the optional repo option.
func (b *Bot) ghRepoInfo(_ context.Context, _ *discordgo.Interaction, st studio.Studio, opts discord.Options) (*discordgo.InteractionResponse, error) {
	if b.code == nil {
		return discord.Ephemeral(msgNoCodeHost), nil
	}
	name := st.RepoName
	if raw, ok := opts.String("repo"); ok && strings.TrimSpace(raw) != "" {
		n, err := studio.NormalizeRepoName(raw)
		if err != nil {
			return discord.Ephemeral(err.Error()), nil
		}
		name = n
	}
	repo, ok, err := b.code.Repo(name)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	if !ok {
		return discord.Ephemeral(fmt.Sprintf("Unable to find repository '%s' in github org", name)), nil
	}

	desc := repo.Description
	if desc == "" {
		desc = "No description provided."
	}
	embed := &discordgo.MessageEmbed{
		Title:       repo.FullName,
		URL:         repo.URL,
		Description: desc,
		Color:       discord.ColorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "⭐ Stars", Value: strconv.Itoa(repo.Stars), Inline: true},
			{Name: "🍴 Forks", Value: strconv.Itoa(repo.Forks), Inline: true},
			{Name: "👀 Watchers", Value: strconv.Itoa(repo.Watchers), Inline: true},
			{Name: "🧑‍💻 Open Issues", Value: strconv.Itoa(repo.OpenIssues), Inline: true},
			{Name: "📅 Created At", Value: fmt.Sprintf("<t:%d:D>", repo.CreatedAt.Unix()), Inline: true},
			{Name: "🛠 Updated At", Value: fmt.Sprintf("<t:%d:R>", repo.UpdatedAt.Unix()), Inline: true},
		},
	}
	if repo.OrgAvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: repo.OrgAvatarURL}
	}
	return discord.Reply("", embed), nil
}

// repoAutocomplete suggests organization repositories containing the typed text.
func (b *Bot) repoAutocomplete(ctx context.Context, _ *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
	if b.code == nil {
		return discord.Autocomplete(nil), nil
	}
	names, err := b.code.RepoNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	typed := strings.ToLower(focusedText(opts))
	choices := []*discordgo.ApplicationCommandOptionChoice{}
	for _, n := range names {
		if typed == "" || strings.Contains(strings.ToLower(n), typed) {
			choices = append(choices, discord.Choice(n))
		}
	}
	return discord.Autocomplete(choices), nil
}

