// Package bot wires the slash commands and gateway events of the course studio bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/codehost"
	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/member"
	"github.com/lucashicks1/cssebot/cmd/internal/setup"
	"github.com/lucashicks1/cssebot/cmd/internal/sprint"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
)

// DefaultCooldown is the per-key window of rate-limited commands.
const DefaultCooldown = 5 * time.Second

const (
	msgGuildOnly      = "This command must be used in a server."
	msgStudioRequired = "This command requires a studio to be set up for the guild - staff use `/studio setup` for this."
	msgManageGuild    = "You need the 'Manage Server' permission to use this command."
	msgNoCodeHost     = "GitHub integration is not configured for this bot."
)

// Course holds the per-course constants.
type Course struct {
	StudentRole string
	TutorRoles  []string
	TeamPrefix  string
}

// API is the Discord REST surface the bot calls.
type API interface {
	CreateMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
	GuildRoles(ctx context.Context, guildID string) ([]*discordgo.Role, error)
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	GuildMember(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	GuildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error)
	BulkOverwriteGuildCommands(ctx context.Context, guildID string, cmds []*discordgo.ApplicationCommand) (int, error)
}

// CodeHost is the GitHub surface the bot calls.
type CodeHost interface {
	Org() string
	RepoURL(name string) string
	Repo(name string) (codehost.Repo, bool, error)
	RepoNames(ctx context.Context) ([]string, error)
	Account(id int64) (codehost.Account, bool, error)
	Refresh(ctx context.Context) (int, error)
	MemberID(login string) (int64, bool)
}

// Deps are the collaborators of a Bot. Code may be nil.
type Deps struct {
	Studios *studio.Reconciler
	Setup   *setup.Flow
	Members *member.Directory
	Sprints sprint.Store
	Code    CodeHost
	API     API
	Course  Course

	// CommandGuilds receive guild-scoped commands on Sync; empty registers globally.
	CommandGuilds []string
	Cooldown      time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Bot answers interactions and gateway events.
type Bot struct {
	studios *studio.Reconciler
	setup   *setup.Flow
	members *member.Directory
	sprints sprint.Store
	code    CodeHost
	api     API
	course  Course
	guilds  []string
	now     func() time.Time
	log     *slog.Logger

	userCooldown  *discord.Cooldown
	guildCooldown *discord.Cooldown

	mu             sync.Mutex
	systemChannels map[string]string
}

// New validates deps and builds a Bot.
func New(d Deps) (*Bot, error) {
	if d.Studios == nil || d.Setup == nil || d.Members == nil || d.Sprints == nil || d.API == nil {
		return nil, errors.New("bot: missing dependency")
	}
	if d.Course.TeamPrefix == "" {
		d.Course.TeamPrefix = "Team "
	}
	if d.Cooldown <= 0 {
		d.Cooldown = DefaultCooldown
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Bot{
		studios:        d.Studios,
		setup:          d.Setup,
		members:        d.Members,
		sprints:        d.Sprints,
		code:           d.Code,
		api:            d.API,
		course:         d.Course,
		guilds:         d.CommandGuilds,
		now:            d.Now,
		log:            d.Logger,
		userCooldown:   discord.NewCooldown(1, d.Cooldown),
		guildCooldown:  discord.NewCooldown(1, d.Cooldown),
		systemChannels: make(map[string]string),
	}, nil
}

// handler receives the options of the resolved command route.
type handler func(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error)

// studioHandler additionally receives the guild's studio.
type studioHandler func(ctx context.Context, in *discordgo.Interaction, st studio.Studio, opts discord.Options) (*discordgo.InteractionResponse, error)

func wrap(h handler) discord.HandlerFunc {
	return func(ctx context.Context, in *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
		d, err := discord.CommandData(in)
		if err != nil {
			return nil, err
		}
		_, opts := discord.Route(d)
		return h(ctx, in, opts)
	}
}

func guildOnly(h handler) handler {
	return func(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
		if in.GuildID == "" {
			return discord.Ephemeral(msgGuildOnly), nil
		}
		return h(ctx, in, opts)
	}
}

func requireManageGuild(h handler) handler {
	return guildOnly(func(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
		if !discord.HasPermission(discord.MemberPermissions(in), discordgo.PermissionManageServer) {
			return discord.Ephemeral(msgManageGuild), nil
		}
		return h(ctx, in, opts)
	})
}

// studioRequired answers with the setup hint when the guild has no studio.
func (b *Bot) studioRequired(h studioHandler) handler {
	return guildOnly(func(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
		st, ok, err := b.studios.Lookup(ctx, in.GuildID)
		if err != nil {
			return nil, fmt.Errorf("lookup studio: %w", err)
		}
		if !ok {
			return discord.Ephemeral(msgStudioRequired), nil
		}
		return h(ctx, in, st, opts)
	})
}

// cooldown limits h to one call per key per window.
func (b *Bot) cooldown(c *discord.Cooldown, key func(*discordgo.Interaction) string, h handler) handler {
	return func(ctx context.Context, in *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
		ok, wait := c.Allow(key(in), b.now())
		if !ok {
			return discord.Ephemeral(fmt.Sprintf("You are on cooldown. Try again in %.2fs", wait.Seconds())), nil
		}
		return h(ctx, in, opts)
	}
}

func byUser(in *discordgo.Interaction) string  { return discord.Invoker(in).ID }
func byGuild(in *discordgo.Interaction) string { return in.GuildID }

// Register attaches every command, component and modal handler to r.
func (b *Bot) Register(r *discord.Router) {
	r.Command("studio setup", b.setup.Start)
	r.Command("studio info", wrap(b.studioRequired(b.studioInfo)))
	r.Command("studio clean", wrap(requireManageGuild(b.studioClean)))
	r.Component(setup.Prefix, b.setup.HandleComponent)
	r.Modal(setup.Prefix, b.setup.HandleModal)

	r.Command("gh get", wrap(b.cooldown(b.userCooldown, byUser, b.ghGet)))
	r.Command("gh set", wrap(guildOnly(b.ghSet)))
	r.Command("gh unset", wrap(requireManageGuild(b.ghUnset)))
	r.Command("gh refresh", wrap(requireManageGuild(b.ghRefresh)))
	r.Command("gh repo_info", wrap(b.cooldown(b.guildCooldown, byGuild, b.studioRequired(b.ghRepoInfo))))
	r.Autocomplete("gh repo_info", wrap(b.repoAutocomplete))

	r.Command("team set", wrap(guildOnly(b.teamSet)))
	r.Autocomplete("team set", wrap(guildOnly(b.teamAutocomplete)))

	r.Command("sprint set", wrap(requireManageGuild(b.studioRequired(b.sprintSet))))
	r.Command("sprint show", wrap(b.studioRequired(b.sprintShow)))

	r.Command("admin sync", wrap(requireManageGuild(b.adminSync)))
	r.Command("say hello", wrap(b.sayHello))
}

// Sync registers the command definitions and returns how many were registered.
func (b *Bot) Sync(ctx context.Context) (int, error) {
	cmds := Commands()
	if len(b.guilds) == 0 {
		return b.api.BulkOverwriteGuildCommands(ctx, "", cmds)
	}
	total := 0
	for _, g := range b.guilds {
		n, err := b.api.BulkOverwriteGuildCommands(ctx, g, cmds)
		if err != nil {
			return total, fmt.Errorf("sync guild %s: %w", g, err)
		}
		total += n
	}
	return total, nil
}

// Sweep drops idle cooldown keys.
func (b *Bot) Sweep(now time.Time) int {
	return b.userCooldown.Sweep(now) + b.guildCooldown.Sweep(now)
}

func (b *Bot) isTeamRole(name string) bool { return strings.HasPrefix(name, b.course.TeamPrefix) }
