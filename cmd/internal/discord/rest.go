package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const userAgent = "DiscordBot (https://github.com/lucashicks1/cssebot, 1.0)"

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("discord: not found")

// APIError is a non-2xx REST response.
type APIError struct {
	Status     int
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("discord: http %d: %s (retry after %s)", e.Status, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("discord: http %d code %d: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// apiError flattens discordgo's REST and rate-limit errors into *APIError.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		e := &APIError{Status: restErr.Response.StatusCode, Message: http.StatusText(restErr.Response.StatusCode)}
		if restErr.Message != nil {
			e.Code = restErr.Message.Code
			if restErr.Message.Message != "" {
				e.Message = restErr.Message.Message
			}
		}
		return e
	}
	var rlErr *discordgo.RateLimitError
	if errors.As(err, &rlErr) && rlErr.RateLimit != nil && rlErr.TooManyRequests != nil {
		return &APIError{Status: http.StatusTooManyRequests, Message: rlErr.Message, RetryAfter: rlErr.RetryAfter}
	}
	return err
}

// REST is a bot-token REST client over a discordgo session. It never retries;
// rate-limit responses surface as *APIError.
type REST struct {
	s     *discordgo.Session
	base  string
	appID string
}

// RESTOption configures REST.
type RESTOption func(*REST)

// WithAPIBase sends requests to another root instead of discord.com (tests, proxies).
func WithAPIBase(base string) RESTOption {
	return func(c *REST) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.base = base
		}
	}
}

// NewREST constructs a client. A nil httpClient uses a 15s-timeout client.
func NewREST(httpClient *http.Client, token, appID string, opts ...RESTOption) (*REST, error) {
	c := &REST{appID: strings.TrimSpace(appID)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	s, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	if httpClient != nil {
		cp := *httpClient
		client = &cp
	}
	if c.base != "" {
		next := client.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		client.Transport = rebase{from: discordgo.EndpointAPI, to: c.base + "/", next: next}
	}
	s.Client = client
	s.UserAgent = userAgent
	s.ShouldRetryOnRateLimit = false
	s.MaxRestRetries = 0
	s.StateEnabled = false
	c.s = s
	return c, nil
}

// rebase rewrites requests for the discord.com API root onto another root.
type rebase struct {
	from, to string
	next     http.RoundTripper
}

func (r rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	u := req.URL.String()
	if !strings.HasPrefix(u, r.from) {
		return r.next.RoundTrip(req)
	}
	target, err := url.Parse(r.to + strings.TrimPrefix(u, r.from))
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.URL = target
	req.Host = target.Host
	return r.next.RoundTrip(req)
}

// BulkOverwriteGuildCommands replaces the application's commands in guildID, or the global set
// when guildID is empty. It returns how many commands are registered.
func (c *REST) BulkOverwriteGuildCommands(ctx context.Context, guildID string, cmds []*discordgo.ApplicationCommand) (int, error) {
	if c.appID == "" {
		return 0, errors.New("discord: application id not configured")
	}
	if cmds == nil {
		cmds = []*discordgo.ApplicationCommand{}
	}
	out, err := c.s.ApplicationCommandBulkOverwrite(c.appID, guildID, cmds, discordgo.WithContext(ctx))
	if err != nil {
		return 0, apiError(err)
	}
	return len(out), nil
}

// CreateMessage posts a message to channelID.
func (c *REST) CreateMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	_, err := c.s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return apiError(err)
}

// AddMemberRole grants roleID to userID. reason, when set, is recorded in the guild audit log.
func (c *REST) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return apiError(c.s.GuildMemberRoleAdd(guildID, userID, roleID, c.requestOptions(ctx, reason)...))
}

// RemoveMemberRole revokes roleID from userID.
func (c *REST) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return apiError(c.s.GuildMemberRoleRemove(guildID, userID, roleID, c.requestOptions(ctx, reason)...))
}

func (c *REST) requestOptions(ctx context.Context, reason string) []discordgo.RequestOption {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(url.PathEscape(reason)))
	}
	return opts
}

// GuildRoles lists the roles of guildID.
func (c *REST) GuildRoles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	out, err := c.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	return out, apiError(err)
}

// GuildChannels lists the channels of guildID.
func (c *REST) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	out, err := c.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	return out, apiError(err)
}

// GuildMember fetches one member. A user who left the guild yields ErrNotFound.
func (c *REST) GuildMember(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	out, err := c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	return out, apiError(err)
}

// GuildMembers lists up to 1000 members of guildID (one page).
func (c *REST) GuildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	out, err := c.s.GuildMembers(guildID, "", 1000, discordgo.WithContext(ctx))
	return out, apiError(err)
}

// GatewayURL returns the websocket URL for bot gateway connections.
func (c *REST) GatewayURL(ctx context.Context) (string, error) {
	out, err := c.s.GatewayBot(discordgo.WithContext(ctx))
	if err != nil {
		return "", apiError(err)
	}
	if out == nil || out.URL == "" {
		return "", errors.New("discord: empty gateway url")
	}
	return out.URL, nil
}
