package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
)

func (b *Bot) adminSync(ctx context.Context, in *discordgo.Interaction, _ discord.Options) (*discordgo.InteractionResponse, error) {
	n, err := b.Sync(ctx)
	if err != nil {
		return nil, err
	}
	b.log.Info("bot.commands.synced", "count", n, "by", discord.Invoker(in).ID)
	return discord.Ephemeral(fmt.Sprintf("Successfully synced %d command(s).", n)), nil
}

func (b *Bot) sayHello(_ context.Context, _ *discordgo.Interaction, opts discord.Options) (*discordgo.InteractionResponse, error) {
	thing, _ := opts.String("thing_to_say")
	return discord.Reply(thing + " - BOOM, said a thing"), nil
}
