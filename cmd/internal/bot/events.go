package bot

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
)

// joinWindow separates a fresh join from the GUILD_CREATE replayed on every connect.
const joinWindow = 5 * time.Minute

// maxPromptAttempts bounds the channels tried when posting the setup prompt.
const maxPromptAttempts = 5

// OnEvent handles gateway dispatches. It has the signature of discord.DispatchFunc.
func (b *Bot) OnEvent(ctx context.Context, event string, data json.RawMessage) {
	switch event {
	case "GUILD_CREATE":
		var g discordgo.GuildCreate
		if err := json.Unmarshal(data, &g); err != nil || g.Guild == nil {
			b.log.Warn("bot.event.decode.fail", "event", event, "err", err)
			return
		}
		b.guildCreate(ctx, g.Guild)
	case "GUILD_DELETE":
		var g discordgo.GuildDelete
		if err := json.Unmarshal(data, &g); err != nil || g.Guild == nil {
			b.log.Warn("bot.event.decode.fail", "event", event, "err", err)
			return
		}
		b.guildDelete(ctx, g.Guild)
	case "GUILD_MEMBER_ADD":
		var m discordgo.GuildMemberAdd
		if err := json.Unmarshal(data, &m); err != nil || m.Member == nil {
			b.log.Warn("bot.event.decode.fail", "event", event, "err", err)
			return
		}
		b.memberAdd(ctx, m.Member)
	}
}

// guildDelete forgets a guild the bot was removed from. An outage (unavailable) keeps everything.
func (b *Bot) guildDelete(ctx context.Context, g *discordgo.Guild) {
	if g.Unavailable {
		return
	}
	b.mu.Lock()
	delete(b.systemChannels, g.ID)
	b.mu.Unlock()

	ok, err := b.studios.Unlink(ctx, g.ID)
	if err != nil {
		b.log.Error("bot.guild.leave.unlink.fail", "guild_id", g.ID, "err", err)
		return
	}
	b.log.Info("bot.guild.leave", "guild_id", g.ID, "unlinked", ok)
}

func (b *Bot) guildCreate(ctx context.Context, g *discordgo.Guild) {
	if g.Unavailable {
		return
	}
	b.mu.Lock()
	b.systemChannels[g.ID] = g.SystemChannelID
	b.mu.Unlock()

	if !b.freshJoin(g) {
		return
	}
	_, ok, err := b.studios.Lookup(ctx, g.ID)
	if err != nil {
		b.log.Error("bot.guild.join.lookup.fail", "guild_id", g.ID, "err", err)
		return
	}
	if ok {
		return
	}

	msg, err := b.setup.Prompt(g.ID, g.Name)
	if err != nil {
		b.log.Error("bot.guild.join.prompt.fail", "guild_id", g.ID, "err", err)
		return
	}
	for i, ch := range promptChannels(g) {
		if i == maxPromptAttempts {
			break
		}
		if err := b.api.CreateMessage(ctx, ch, msg); err != nil {
			b.log.Debug("bot.guild.join.post.fail", "guild_id", g.ID, "channel_id", ch, "err", err)
			continue
		}
		b.log.Info("bot.guild.join.prompted", "guild_id", g.ID, "channel_id", ch)
		return
	}
	b.log.Warn("bot.guild.join.no_channel", "guild_id", g.ID)
}

func (b *Bot) freshJoin(g *discordgo.Guild) bool {
	if g.JoinedAt.IsZero() {
		return false
	}
	return b.now().Sub(g.JoinedAt) < joinWindow
}

// promptChannels orders the text channels to try: the system channel first, then by position.
func promptChannels(g *discordgo.Guild) []string {
	var text []*discordgo.Channel
	for _, c := range g.Channels {
		if c != nil && c.Type == discordgo.ChannelTypeGuildText && c.ID != g.SystemChannelID {
			text = append(text, c)
		}
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })

	out := make([]string, 0, len(text)+1)
	if g.SystemChannelID != "" {
		out = append(out, g.SystemChannelID)
	}
	for _, c := range text {
		out = append(out, c.ID)
	}
	return out
}

func (b *Bot) memberAdd(ctx context.Context, m *discordgo.Member) {
	if m.User == nil || m.User.Bot {
		return
	}
	b.mu.Lock()
	ch := b.systemChannels[m.GuildID]
	b.mu.Unlock()
	if ch == "" {
		return
	}
	if err := b.api.CreateMessage(ctx, ch, &discordgo.MessageSend{Content: "Welcome " + m.User.Mention() + "."}); err != nil {
		b.log.Warn("bot.member.welcome.fail", "guild_id", m.GuildID, "user_id", m.User.ID, "err", err)
	}
}
