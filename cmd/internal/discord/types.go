// Package discord speaks the parts of the Discord API the bot uses: signed HTTP interactions,
// a small REST client and a gateway connection for guild events. Wire types come from discordgo.
package discord

import (
	"errors"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// Embed colors.
const (
	ColorBlurple = 0x7289DA
	ColorGreen   = 0x00FF00
	ColorRed     = 0xFF0000
	ColorBlue    = 0x3498DB
)

// maxChoices is Discord's limit on autocomplete suggestions.
const maxChoices = 25

var errWrongData = errors.New("discord: interaction data does not match its type")

// Kind labels an interaction type for logs and metrics.
func Kind(t discordgo.InteractionType) string {
	switch t {
	case discordgo.InteractionPing:
		return "ping"
	case discordgo.InteractionApplicationCommand:
		return "command"
	case discordgo.InteractionMessageComponent:
		return "component"
	case discordgo.InteractionApplicationCommandAutocomplete:
		return "autocomplete"
	case discordgo.InteractionModalSubmit:
		return "modal"
	default:
		return "unknown"
	}
}

// Invoker returns the user behind the interaction, in a guild or a DM. It is never nil.
func Invoker(in *discordgo.Interaction) *discordgo.User {
	switch {
	case in.Member != nil && in.Member.User != nil:
		return in.Member.User
	case in.User != nil:
		return in.User
	default:
		return &discordgo.User{}
	}
}

// MemberPermissions returns the invoker's guild permissions, zero outside a guild.
func MemberPermissions(in *discordgo.Interaction) int64 {
	if in.Member == nil {
		return 0
	}
	return in.Member.Permissions
}

// HasPermission reports whether perms grants every bit of req. Administrator grants everything.
func HasPermission(perms, req int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&req == req
}

// HasRole reports whether m holds roleID.
func HasRole(m *discordgo.Member, roleID string) bool {
	return m != nil && slices.Contains(m.Roles, roleID)
}

// Mention renders the mention markup of a user id.
func Mention(userID string) string {
	return (&discordgo.User{ID: userID}).Mention()
}

// CommandData returns the data of a command or autocomplete interaction.
func CommandData(in *discordgo.Interaction) (discordgo.ApplicationCommandInteractionData, error) {
	d, ok := in.Data.(discordgo.ApplicationCommandInteractionData)
	if !ok {
		return discordgo.ApplicationCommandInteractionData{}, errWrongData
	}
	return d, nil
}

// ComponentData returns the data of a component interaction.
func ComponentData(in *discordgo.Interaction) (discordgo.MessageComponentInteractionData, error) {
	d, ok := in.Data.(discordgo.MessageComponentInteractionData)
	if !ok {
		return discordgo.MessageComponentInteractionData{}, errWrongData
	}
	return d, nil
}

// ModalData returns the data of a modal submission.
func ModalData(in *discordgo.Interaction) (discordgo.ModalSubmitInteractionData, error) {
	d, ok := in.Data.(discordgo.ModalSubmitInteractionData)
	if !ok {
		return discordgo.ModalSubmitInteractionData{}, errWrongData
	}
	return d, nil
}

// ModalValue returns the submitted value of the text input customID.
func ModalValue(d discordgo.ModalSubmitInteractionData, customID string) (string, bool) {
	return findInput(d.Components, customID)
}

func findInput(cs []discordgo.MessageComponent, customID string) (string, bool) {
	for _, c := range cs {
		switch c := c.(type) {
		case *discordgo.ActionsRow:
			if v, ok := findInput(c.Components, customID); ok {
				return v, true
			}
		case discordgo.ActionsRow:
			if v, ok := findInput(c.Components, customID); ok {
				return v, true
			}
		case *discordgo.TextInput:
			if c.CustomID == customID {
				return c.Value, true
			}
		case discordgo.TextInput:
			if c.CustomID == customID {
				return c.Value, true
			}
		}
	}
	return "", false
}

// Route returns "name" or "name sub" for a command with a subcommand, and the options that apply.
func Route(d discordgo.ApplicationCommandInteractionData) (string, Options) {
	if len(d.Options) == 1 && d.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return d.Name + " " + d.Options[0].Name, d.Options[0].Options
	}
	return d.Name, d.Options
}

// Options is a lookup over supplied options. Lookups never panic on a type mismatch.
type Options []*discordgo.ApplicationCommandInteractionDataOption

func (o Options) find(name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range o {
		if opt != nil && opt.Name == name {
			return opt, true
		}
	}
	return nil, false
}

// String returns the string (or snowflake) value of name.
func (o Options) String(name string) (string, bool) {
	opt, ok := o.find(name)
	if !ok {
		return "", false
	}
	s, ok := opt.Value.(string)
	return s, ok
}

// Int returns the integer value of name.
func (o Options) Int(name string) (int64, bool) {
	opt, ok := o.find(name)
	if !ok {
		return 0, false
	}
	switch v := opt.Value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// Focused returns the option being typed in an autocomplete interaction.
func (o Options) Focused() (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range o {
		if opt != nil && opt.Focused {
			return opt, true
		}
	}
	return nil, false
}

// ActionRow groups components on one line.
func ActionRow(cs ...discordgo.MessageComponent) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: cs}
}

// Button builds a button. emoji may be empty.
func Button(style discordgo.ButtonStyle, label, emoji, customID string) discordgo.Button {
	b := discordgo.Button{Style: style, Label: label, CustomID: customID}
	if emoji != "" {
		b.Emoji = &discordgo.ComponentEmoji{Name: emoji}
	}
	return b
}

// StringSelect builds a single-choice select menu.
func StringSelect(customID, placeholder string, opts []discordgo.SelectMenuOption) discordgo.SelectMenu {
	return discordgo.SelectMenu{MenuType: discordgo.StringSelectMenu, CustomID: customID, Placeholder: placeholder, Options: opts}
}

// TextInput builds a required short text input for a modal.
func TextInput(customID, label, placeholder string, maxLen int) discordgo.TextInput {
	return discordgo.TextInput{
		CustomID:    customID,
		Label:       label,
		Style:       discordgo.TextInputShort,
		Placeholder: placeholder,
		MaxLength:   maxLen,
		Required:    true,
	}
}

// Pong answers a PING.
func Pong() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}
}

// Reply answers with a channel message.
func Reply(content string, embeds ...*discordgo.MessageEmbed) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Embeds: embeds},
	}
}

// Ephemeral answers with a message only the invoker sees.
func Ephemeral(content string, embeds ...*discordgo.MessageEmbed) *discordgo.InteractionResponse {
	r := Reply(content, embeds...)
	r.Data.Flags = discordgo.MessageFlagsEphemeral
	return r
}

// Update replaces the message the component was attached to. No components clears them.
func Update(embed *discordgo.MessageEmbed, components ...discordgo.MessageComponent) *discordgo.InteractionResponse {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}, Components: components},
	}
}

// Modal opens a modal dialog with one text input per row.
func Modal(customID, title string, inputs ...discordgo.TextInput) *discordgo.InteractionResponse {
	rows := make([]discordgo.MessageComponent, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, ActionRow(in))
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{CustomID: customID, Title: title, Components: rows},
	}
}

// Autocomplete answers an autocomplete interaction with at most 25 choices.
func Autocomplete(choices []*discordgo.ApplicationCommandOptionChoice) *discordgo.InteractionResponse {
	if len(choices) > maxChoices {
		choices = choices[:maxChoices]
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}
}

// Choice builds an autocomplete suggestion whose name is its value.
func Choice(v string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v}
}
