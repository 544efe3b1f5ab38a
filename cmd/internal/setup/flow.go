// Package setup runs the studio setup wizard over Discord components.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
	"github.com/lucashicks1/cssebot/cmd/internal/wizard"
)

// Prefix routes component and modal interactions to the flow.
const Prefix = "setup"

const (
	fieldNumber = "number"
	fieldYear   = "year"
	fieldRepo   = "repo"
)

// DefaultNumStudios is the size of the studio number select when not configured.
const DefaultNumStudios = 13

// maxSelectOptions is Discord's limit on select menu options.
const maxSelectOptions = 25

const (
	unauthorizedMsg = "❌ You need 'Manage Server' permissions to set up the bot for your studio."
	notStartedMsg   = "Press **Setup Studio** to begin."
)

// RepoChecker reports whether name is a repository of the organization.
type RepoChecker func(ctx context.Context, name string) (bool, error)

// Config tunes the flow.
type Config struct {
	NumStudios int
	Org        string
	Timeout    time.Duration

	// CheckRepo, when set, rejects repository names the organization does not have.
	CheckRepo RepoChecker

	Now      func() time.Time
	Logger   *slog.Logger
	Observer wizard.Observer
}

// Flow creates setup sessions and answers their interactions.
type Flow struct {
	rec      *studio.Reconciler
	cfg      Config
	sessions *wizard.Registry[View]
	log      *slog.Logger
}

// New constructs a Flow that finalizes through rec.
func New(rec *studio.Reconciler, cfg Config) (*Flow, error) {
	if rec == nil {
		return nil, studio.ErrInvalidInput
	}
	if cfg.NumStudios <= 0 {
		cfg.NumStudios = DefaultNumStudios
	}
	if cfg.NumStudios > maxSelectOptions {
		return nil, fmt.Errorf("setup: at most %d studios fit in a select: %w", maxSelectOptions, studio.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = wizard.DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Flow{
		rec:      rec,
		cfg:      cfg,
		sessions: wizard.NewRegistry[View](cfg.Now),
		log:      cfg.Logger,
	}, nil
}

func actorOf(in *discordgo.Interaction) wizard.Actor {
	return wizard.Actor{ID: discord.Invoker(in).ID, GuildID: in.GuildID, Permissions: uint64(discord.MemberPermissions(in))}
}

func (f *Flow) authorize(guildID string) func(wizard.Actor) bool {
	return func(a wizard.Actor) bool {
		return a.GuildID == guildID && discord.HasPermission(int64(a.Permissions), discordgo.PermissionManageServer)
	}
}

// newSession registers a fresh session for guildID.
func (f *Flow) newSession(guildID string) (*wizard.Session[View], error) {
	s, err := wizard.New(wizard.Config[View]{
		GuildID:   guildID,
		Require:   uint64(discordgo.PermissionManageServer),
		Timeout:   f.cfg.Timeout,
		Steps:     f.steps(f.cfg.Now()),
		Finalize:  f.finalizer(guildID),
		Authorize: f.authorize(guildID),
		Now:       f.cfg.Now,
		Logger:    f.log,
		Observer:  f.cfg.Observer,
	})
	if err != nil {
		return nil, err
	}
	f.sessions.Add(s)
	return s, nil
}

// Start answers /studio setup with the intro message and a button bound to a new session.
func (f *Flow) Start(_ context.Context, in *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	if in.GuildID == "" {
		return discord.Ephemeral("This command can only be used in a server"), nil
	}
	if !discord.HasPermission(discord.MemberPermissions(in), discordgo.PermissionManageServer) {
		return discord.Ephemeral(unauthorizedMsg), nil
	}
	s, err := f.newSession(in.GuildID)
	if err != nil {
		return nil, err
	}
	f.log.Info("setup.session.start", "guild_id", in.GuildID, "session", s.ID(), "user_id", discord.Invoker(in).ID)
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{introEmbed()},
			Components: f.startButton(s.ID()),
		},
	}, nil
}

// Prompt builds the welcome message posted when the bot joins an unconfigured guild.
func (f *Flow) Prompt(guildID, guildName string) (*discordgo.MessageSend, error) {
	s, err := f.newSession(guildID)
	if err != nil {
		return nil, err
	}
	return &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{welcomeEmbed(guildName)},
		Components: f.startButton(s.ID()),
	}, nil
}

func (f *Flow) startButton(sessionID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{discord.ActionRow(
		discord.Button(discordgo.PrimaryButton, "Setup Studio", "", discord.CustomID(Prefix, sessionID, actionStart, "-1")),
	)}
}

// HandleComponent answers button clicks and select choices of a setup session.
func (f *Flow) HandleComponent(ctx context.Context, in *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	d, err := discord.ComponentData(in)
	if err != nil {
		return nil, err
	}
	s, action, step, err := f.lookup(d.CustomID)
	if err != nil {
		return f.failure(err)
	}
	actor := actorOf(in)

	var fr wizard.Frame[View]
	switch action {
	case actionStart:
		fr, err = s.Begin(ctx, actor)
	case actionNumber:
		fr, err = s.Submit(ctx, actor, step, fieldNumber, result(studio.ValidateNumber(first(d.Values))))
	case actionYear:
		fr, err = s.Submit(ctx, actor, step, fieldYear, result(studio.ValidateYear(first(d.Values), f.cfg.Now())))
	case actionRepo:
		if err := s.Check(actor, step); err != nil {
			return f.failure(err)
		}
		return discord.Modal(
			discord.CustomID(Prefix, s.ID(), actionRepo, strconv.Itoa(step)),
			"GitHub Repository",
			discord.TextInput(repoInputID, "GitHub Repository", "username/repository or full GitHub URL", studio.MaxRepoNameLen),
		), nil
	case actionConfirm:
		fr, err = s.Submit(ctx, actor, step, "", wizard.Accept(nil))
	default:
		return f.failure(wizard.ErrSessionNotFound)
	}
	return f.respond(s, fr, err)
}

// HandleModal answers the repository modal.
func (f *Flow) HandleModal(ctx context.Context, in *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	d, err := discord.ModalData(in)
	if err != nil {
		return nil, err
	}
	s, action, step, err := f.lookup(d.CustomID)
	if err != nil {
		return f.failure(err)
	}
	if action != actionRepo {
		return f.failure(wizard.ErrSessionNotFound)
	}
	raw, _ := discord.ModalValue(d, repoInputID)
	fr, err := s.Submit(ctx, actorOf(in), step, fieldRepo, f.repoResult(ctx, raw))
	return f.respond(s, fr, err)
}

func (f *Flow) repoResult(ctx context.Context, raw string) wizard.StepResult {
	name, err := studio.NormalizeRepoName(raw)
	if err != nil {
		return result(name, err)
	}
	if f.cfg.CheckRepo == nil {
		return wizard.Accept(name)
	}
	ok, err := f.cfg.CheckRepo(ctx, name)
	if err != nil {
		// The code host being unreachable should not block setup.
		f.log.Warn("setup.repo.check.fail", "repo_name", name, "err", err)
		return wizard.Accept(name)
	}
	if !ok {
		return wizard.Reject(fmt.Sprintf("'%s' is not a repository in %s", name, f.cfg.Org))
	}
	return wizard.Accept(name)
}

func (f *Flow) finalizer(guildID string) wizard.Finalizer[View] {
	return func(ctx context.Context, v wizard.Values) (View, error) {
		number, okN := v.Int(fieldNumber)
		year, okY := v.Int(fieldYear)
		repo, okR := v.String(fieldRepo)
		if !okN || !okY || !okR {
			return View{Embed: failedEmbed()}, fmt.Errorf("setup: incomplete values: %w", studio.ErrInvalidInput)
		}
		st, outcome, err := f.rec.Reconcile(ctx, guildID, number, year, repo)
		if err != nil {
			return View{Embed: failedEmbed()}, err
		}
		f.log.Info("setup.complete", "guild_id", guildID, "studio_id", st.ID, "outcome", outcome.String())
		return View{Embed: completeEmbed(st)}, nil
	}
}

// respond turns a transition into the message update.
func (f *Flow) respond(s *wizard.Session[View], fr wizard.Frame[View], err error) (*discordgo.InteractionResponse, error) {
	if fr.Done {
		f.sessions.Remove(s.ID())
		if err != nil {
			f.log.Error("setup.finalize.fail", "guild_id", s.GuildID(), "session", s.ID(), "err", err)
		}
		if fr.Surface.Embed == nil {
			return discord.Update(failedEmbed()), nil
		}
		return discord.Update(fr.Surface.Embed), nil
	}
	if err != nil {
		return f.failure(err)
	}
	return discord.Update(stepEmbed(fr), bind(fr.Surface.Components, fr.SessionID, fr.Index)...), nil
}

// failure maps engine errors onto what the user sees.
func (f *Flow) failure(err error) (*discordgo.InteractionResponse, error) {
	switch {
	case errors.Is(err, wizard.ErrUnauthorized):
		return discord.Ephemeral(unauthorizedMsg), nil
	case errors.Is(err, wizard.ErrSessionExpired), errors.Is(err, wizard.ErrSessionNotFound):
		return discord.Update(expiredEmbed()), nil
	case errors.Is(err, wizard.ErrNotStarted):
		return discord.Ephemeral(notStartedMsg), nil
	case errors.Is(err, wizard.ErrStaleStep):
		return discord.Ephemeral("That step has already been answered."), nil
	case errors.Is(err, wizard.ErrFinished):
		return discord.Ephemeral("This setup has already finished."), nil
	case errors.Is(err, wizard.ErrAborted):
		return discord.Update(errorEmbed()), nil
	default:
		return nil, err
	}
}

// lookup resolves "setup:<session>:<action>:<step>".
func (f *Flow) lookup(customID string) (*wizard.Session[View], string, int, error) {
	prefix, parts := discord.SplitCustomID(customID)
	if prefix != Prefix || len(parts) != 3 {
		return nil, "", 0, wizard.ErrSessionNotFound
	}
	step, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, "", 0, wizard.ErrSessionNotFound
	}
	s, err := f.sessions.Get(parts[0])
	if err != nil {
		return nil, "", 0, err
	}
	return s, parts[1], step, nil
}

// Sweep drops expired and finished sessions.
func (f *Flow) Sweep() int { return f.sessions.Sweep() }

// Live returns the number of registered sessions.
func (f *Flow) Live() int { return f.sessions.Len() }

func result[T any](v T, err error) wizard.StepResult {
	if err != nil {
		var ve studio.ValidationError
		if errors.As(err, &ve) {
			return wizard.Reject(ve.Msg)
		}
		return wizard.Reject(err.Error())
	}
	return wizard.Accept(v)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
