package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const defaultMaxBody = 1 << 20

// ErrNoHandler is returned by Dispatch when nothing is registered for an interaction.
var ErrNoHandler = errors.New("discord: no handler for interaction")

// GenericFailure is shown when a handler fails.
const GenericFailure = "Something went wrong while handling that. Please try again."

// HandlerFunc answers one interaction.
type HandlerFunc func(ctx context.Context, in *discordgo.Interaction) (*discordgo.InteractionResponse, error)

// InteractionObserver counts handled interactions by type and status.
type InteractionObserver interface {
	Interaction(kind, status string)
}

type noopInteractionObserver struct{}

func (noopInteractionObserver) Interaction(string, string) {}

// Router verifies and dispatches interactions posted to the HTTP endpoint.
// Register handlers before serving; the maps are not guarded.
type Router struct {
	key     ed25519.PublicKey
	log     *slog.Logger
	obs     InteractionObserver
	maxBody int64

	commands     map[string]HandlerFunc
	autocomplete map[string]HandlerFunc
	components   map[string]HandlerFunc
	modals       map[string]HandlerFunc
}

// RouterOption configures a Router.
type RouterOption func(*Router)

func WithRouterLogger(log *slog.Logger) RouterOption {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}

func WithInteractionObserver(obs InteractionObserver) RouterOption {
	return func(r *Router) {
		if obs != nil {
			r.obs = obs
		}
	}
}

func WithMaxBody(n int64) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

// NewRouter constructs a Router that accepts requests signed for key.
func NewRouter(key ed25519.PublicKey, opts ...RouterOption) (*Router, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, ErrBadPublicKey
	}
	r := &Router{
		key:          key,
		log:          slog.Default(),
		obs:          noopInteractionObserver{},
		maxBody:      defaultMaxBody,
		commands:     make(map[string]HandlerFunc),
		autocomplete: make(map[string]HandlerFunc),
		components:   make(map[string]HandlerFunc),
		modals:       make(map[string]HandlerFunc),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Command handles a command route: "name" or "name sub".
func (r *Router) Command(route string, h HandlerFunc) { r.commands[route] = h }

// Autocomplete handles autocomplete for a command route.
func (r *Router) Autocomplete(route string, h HandlerFunc) { r.autocomplete[route] = h }

// Component handles component interactions whose custom_id starts with prefix.
func (r *Router) Component(prefix string, h HandlerFunc) { r.components[prefix] = h }

// Modal handles modal submissions whose custom_id starts with prefix.
func (r *Router) Modal(prefix string, h HandlerFunc) { r.modals[prefix] = h }

// Commands lists the registered command routes.
func (r *Router) Commands() []string {
	out := make([]string, 0, len(r.commands))
	for k := range r.commands {
		out = append(out, k)
	}
	return out
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := VerifyRequest(r.key, req, r.maxBody)
	if err != nil {
		r.log.Info("discord.interaction.reject", "err", err, "remote", req.RemoteAddr)
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var in discordgo.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	kind := Kind(in.Type)
	if in.Type == discordgo.InteractionPing {
		writeJSON(w, http.StatusOK, Pong())
		return
	}

	resp, err := r.Dispatch(req.Context(), &in)
	if err == nil && resp == nil {
		err = errors.New("discord: handler returned no response")
	}
	if err != nil {
		status := "error"
		if errors.Is(err, ErrNoHandler) {
			status = "unhandled"
		}
		r.obs.Interaction(kind, status)
		r.log.Error("discord.interaction.fail", "type", kind, "guild_id", in.GuildID, "user_id", Invoker(&in).ID, "err", err)
		writeJSON(w, http.StatusOK, Ephemeral(GenericFailure))
		return
	}
	r.obs.Interaction(kind, "ok")
	writeResponse(w, resp)
}

// Dispatch routes an already verified interaction.
func (r *Router) Dispatch(ctx context.Context, in *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	var (
		h   HandlerFunc
		key string
	)
	switch in.Type {
	case discordgo.InteractionPing:
		return Pong(), nil
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		d, err := CommandData(in)
		if err != nil {
			return nil, err
		}
		key, _ = Route(d)
		if in.Type == discordgo.InteractionApplicationCommand {
			h = r.commands[key]
		} else {
			h = r.autocomplete[key]
		}
	case discordgo.InteractionMessageComponent:
		d, err := ComponentData(in)
		if err != nil {
			return nil, err
		}
		key, _ = SplitCustomID(d.CustomID)
		h = r.components[key]
	case discordgo.InteractionModalSubmit:
		d, err := ModalData(in)
		if err != nil {
			return nil, err
		}
		key, _ = SplitCustomID(d.CustomID)
		h = r.modals[key]
	}
	if h == nil {
		return nil, ErrNoHandler
	}
	r.log.Debug("discord.interaction", "type", Kind(in.Type), "route", strings.TrimSpace(key), "guild_id", in.GuildID)
	return h(ctx, in)
}

// writeResponse keeps an empty choices array on autocomplete results; discordgo omits it.
func writeResponse(w http.ResponseWriter, resp *discordgo.InteractionResponse) {
	if resp.Type == discordgo.InteractionApplicationCommandAutocompleteResult && (resp.Data == nil || len(resp.Data.Choices) == 0) {
		writeJSON(w, http.StatusOK, map[string]any{
			"type": resp.Type,
			"data": map[string]any{"choices": []any{}},
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
