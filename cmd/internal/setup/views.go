package setup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
	"github.com/lucashicks1/cssebot/cmd/internal/wizard"
)

// View is what one wizard frame puts on screen. Steps fill Components with bare action ids;
// the flow binds them to the session before replying.
type View struct {
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

const (
	actionStart   = "start"
	actionNumber  = "number"
	actionYear    = "year"
	actionRepo    = "repo"
	actionConfirm = "confirm"

	repoInputID = "repo_name"
)

func (f *Flow) steps(now time.Time) []wizard.Step[View] {
	current := now.Year()
	return []wizard.Step[View]{
		{
			Title:    "Studio Number",
			Describe: func(wizard.Values) string { return "What's your studio number?" },
			Build: func(wizard.Values) (View, error) {
				opts := make([]discordgo.SelectMenuOption, 0, f.cfg.NumStudios)
				for i := studio.MinNumber; i <= f.cfg.NumStudios; i++ {
					opts = append(opts, discordgo.SelectMenuOption{Label: fmt.Sprintf("Studio %d", i), Value: strconv.Itoa(i)})
				}
				return View{Components: []discordgo.MessageComponent{
					discord.ActionRow(discord.StringSelect(actionNumber, "Choose your studio number...", opts)),
				}}, nil
			},
		},
		{
			Title:    "Studio Year",
			Describe: func(wizard.Values) string { return fmt.Sprintf("What year is this studio for? (Defaults to %d)", current) },
			Build: func(wizard.Values) (View, error) {
				years := studio.YearRange(now)
				opts := make([]discordgo.SelectMenuOption, 0, len(years))
				for _, y := range years {
					opts = append(opts, discordgo.SelectMenuOption{Label: strconv.Itoa(y), Value: strconv.Itoa(y), Default: y == current})
				}
				return View{Components: []discordgo.MessageComponent{
					discord.ActionRow(discord.StringSelect(actionYear, fmt.Sprintf("Select the studio year (default: %d)", current), opts)),
				}}, nil
			},
		},
		{
			Title:    "GitHub Repo",
			Describe: func(wizard.Values) string { return "What's your GitHub repo name?" },
			Build: func(wizard.Values) (View, error) {
				return View{Components: []discordgo.MessageComponent{
					discord.ActionRow(discord.Button(discordgo.PrimaryButton, "Enter GitHub Repository Name", "🔗", actionRepo)),
				}}, nil
			},
		},
		{
			Title: "Confirm",
			Describe: func(v wizard.Values) string {
				number, _ := v.Int(fieldNumber)
				year, ok := v.Int(fieldYear)
				if !ok {
					year = current
				}
				repo, _ := v.String(fieldRepo)
				return fmt.Sprintf("**🎓 Studio:** Studio %d - %d\n**🔗 GitHub Repo Name:** [`%s`](%s)",
					number, year, repo, f.repoURL(repo))
			},
			Build: func(wizard.Values) (View, error) {
				return View{Components: []discordgo.MessageComponent{
					discord.ActionRow(discord.Button(discordgo.SuccessButton, "Activate Studio Bot", "🚀", actionConfirm)),
				}}, nil
			},
		},
	}
}

func (f *Flow) repoURL(repo string) string {
	return "https://github.com/" + f.cfg.Org + "/" + repo
}

// bind rewrites bare action ids into routable custom ids for sessionID and step.
func bind(cs []discordgo.MessageComponent, sessionID string, step int) []discordgo.MessageComponent {
	routed := func(action string) string {
		if action == "" {
			return ""
		}
		return discord.CustomID(Prefix, sessionID, action, strconv.Itoa(step))
	}
	out := make([]discordgo.MessageComponent, len(cs))
	for i, c := range cs {
		switch c := c.(type) {
		case discordgo.ActionsRow:
			c.Components = bind(c.Components, sessionID, step)
			out[i] = c
		case discordgo.Button:
			c.CustomID = routed(c.CustomID)
			out[i] = c
		case discordgo.SelectMenu:
			c.CustomID = routed(c.CustomID)
			out[i] = c
		default:
			out[i] = c
		}
	}
	return out
}

func introEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🛠️ Studio Setup",
		Description: "Let's configure the bot for your studio\n\n" +
			"**Required Information:**\n" +
			"🎓 Studio Number\n" +
			"🎓 Studio Year\n" +
			"🔗 GitHub Repository",
		Color: discord.ColorBlurple,
	}
}

func welcomeEmbed(guildName string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Welcome to CSSE Bot!",
		Description: fmt.Sprintf("Thanks for adding me to **%s**!", guildName),
		Color:       discord.ColorBlurple,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Click the button below to begin setup"},
	}
}

func stepEmbed(fr wizard.Frame[View]) *discordgo.MessageEmbed {
	desc := fr.Description
	if fr.Notice != "" {
		desc = "❌ " + fr.Notice + "\n\n" + desc
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Step %d: %s", fr.Index+1, fr.Title),
		Description: desc,
		Color:       discord.ColorBlurple,
	}
}

func completeEmbed(st studio.Studio) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🎉 Studio Setup Complete!",
		Description: fmt.Sprintf("**Welcome to Studio %d - %d!** 🎓\n\n", st.Number, st.Year) +
			"The bot is now ready and configured!\n\n" +
			"**📚 Studio Configuration:**\n" +
			fmt.Sprintf("• Studio Number: %d\n", st.Number) +
			fmt.Sprintf("• GitHub Repo Name: %s\n", st.RepoName),
		Color: discord.ColorGreen,
	}
}

func failedEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ Setup Failed",
		Description: "There was an error saving your studio configuration. Please try again.",
		Color:       discord.ColorRed,
	}
}

func errorEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Setup Error",
		Description: "An unexpected error occurred during setup. Please try again.",
		Color:       discord.ColorRed,
	}
}

func expiredEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⌛ Setup Expired",
		Description: "This setup timed out. Run `/studio setup` to start again.",
		Color:       discord.ColorRed,
	}
}
