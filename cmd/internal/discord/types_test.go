package discord

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func TestPermissions(t *testing.T) {
	t.Parallel()

	var in discordgo.Interaction
	require.NoError(t, json.Unmarshal([]byte(`{"type":2,"data":{"name":"x"},"member":{"user":{"id":"u1"},"roles":["r1"],"permissions":"32"}}`), &in))

	perms := MemberPermissions(&in)
	require.True(t, HasPermission(perms, discordgo.PermissionManageServer))
	require.False(t, HasPermission(perms, discordgo.PermissionManageRoles))
	require.True(t, HasRole(in.Member, "r1"))
	require.False(t, HasRole(nil, "r1"))
	require.Equal(t, "u1", Invoker(&in).ID)

	require.True(t, HasPermission(discordgo.PermissionAdministrator, discordgo.PermissionManageServer|discordgo.PermissionManageRoles))
	require.Zero(t, MemberPermissions(&discordgo.Interaction{User: &discordgo.User{ID: "u2"}}))
	require.Equal(t, "u2", Invoker(&discordgo.Interaction{User: &discordgo.User{ID: "u2"}}).ID)
	require.NotNil(t, Invoker(&discordgo.Interaction{}))
}

func TestRoute(t *testing.T) {
	t.Parallel()

	raw := `{"type":2,"data":{"name":"gh","options":[{"name":"set","type":1,"options":[{"name":"gh_username","type":3,"value":"octo"}]}]}}`
	var in discordgo.Interaction
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	d, err := CommandData(&in)
	require.NoError(t, err)

	route, opts := Route(d)
	require.Equal(t, "gh set", route)
	login, ok := opts.String("gh_username")
	require.True(t, ok)
	require.Equal(t, "octo", login)

	_, ok = opts.Int("gh_username")
	require.False(t, ok, "a string option is not an integer")

	raw = `{"type":4,"data":{"name":"say","options":[{"name":"n","type":4,"value":3},{"name":"q","type":3,"value":"Te","focused":true}]}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	d, err = CommandData(&in)
	require.NoError(t, err)
	route, opts = Route(d)
	require.Equal(t, "say", route)
	n, ok := opts.Int("n")
	require.True(t, ok)
	require.Equal(t, int64(3), n)
	f, ok := opts.Focused()
	require.True(t, ok)
	require.Equal(t, "q", f.Name)

	_, err = ComponentData(&in)
	require.Error(t, err, "data type mismatch is an error, not a panic")
}

func TestModalValue(t *testing.T) {
	t.Parallel()

	raw := `{"type":5,"data":{"custom_id":"setup:1","components":[{"type":1,"components":[{"type":4,"custom_id":"repo","value":"game"}]}]}}`
	var in discordgo.Interaction
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	d, err := ModalData(&in)
	require.NoError(t, err)

	v, ok := ModalValue(d, "repo")
	require.True(t, ok)
	require.Equal(t, "game", v)

	_, ok = ModalValue(d, "other")
	require.False(t, ok)
}

func TestResponses(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Update(&discordgo.MessageEmbed{Title: "done"}))
	require.NoError(t, err)
	require.Contains(t, string(b), `"components":[]`)

	m := Modal("setup:1", "Repository", TextInput("repo", "Name", "my-repo", 100))
	require.Equal(t, discordgo.InteractionResponseModal, m.Type)
	require.Len(t, m.Data.Components, 1)
	row, ok := m.Data.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	input, ok := row.Components[0].(discordgo.TextInput)
	require.True(t, ok)
	require.True(t, input.Required)
	require.Equal(t, discordgo.TextInputShort, input.Style)

	require.Equal(t, discordgo.MessageFlagsEphemeral, Ephemeral("hi").Data.Flags)

	many := make([]*discordgo.ApplicationCommandOptionChoice, 30)
	for i := range many {
		many[i] = Choice("c")
	}
	require.Len(t, Autocomplete(many).Data.Choices, 25)

	btn := Button(discordgo.SuccessButton, "Start", "", "setup:1")
	require.Nil(t, btn.Emoji)
	require.Equal(t, "✅", Button(discordgo.SuccessButton, "Start", "✅", "setup:1").Emoji.Name)

	require.Equal(t, "<@u1>", Mention("u1"))
	require.Equal(t, "modal", Kind(discordgo.InteractionModalSubmit))
	require.Equal(t, "unknown", Kind(discordgo.InteractionType(99)))
}

func TestCustomID(t *testing.T) {
	t.Parallel()

	id := CustomID("setup", "01J0000000000000000000000", "1", "number")
	prefix, parts := SplitCustomID(id)
	require.Equal(t, "setup", prefix)
	require.Equal(t, []string{"01J0000000000000000000000", "1", "number"}, parts)

	prefix, parts = SplitCustomID("plain")
	require.Equal(t, "plain", prefix)
	require.Nil(t, parts)
}

func TestCooldown(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(1, 5*time.Second)

	ok, _ := c.Allow("u1", base)
	require.True(t, ok)

	ok, wait := c.Allow("u1", base.Add(2*time.Second))
	require.False(t, ok)
	require.Equal(t, 3*time.Second, wait)

	ok, _ = c.Allow("u2", base.Add(2*time.Second))
	require.True(t, ok, "keys are independent")

	ok, _ = c.Allow("u1", base.Add(5*time.Second+time.Millisecond))
	require.True(t, ok)

	require.Equal(t, 1, c.Sweep(base.Add(7*time.Second+time.Millisecond)))
}
