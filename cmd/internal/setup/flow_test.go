package setup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
	"github.com/lucashicks1/cssebot/cmd/internal/wizard"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type brokenStore struct {
	studio.Store
}

func (brokenStore) Create(context.Context, studio.Studio) (studio.Studio, error) {
	return studio.Studio{}, errors.New("connection reset")
}

type harness struct {
	flow   *Flow
	store  studio.Store
	guilds *studio.GuildCache
	clock  *clock
}

func newHarness(t *testing.T, store studio.Store, check RepoChecker) *harness {
	t.Helper()

	clk := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	guilds := studio.NewGuildCache(store)
	rec, err := studio.NewReconciler(store, guilds, studio.WithClock(clk.Now))
	require.NoError(t, err)
	flow, err := New(rec, Config{NumStudios: 12, Org: "UQcsse3200", Now: clk.Now, CheckRepo: check})
	require.NoError(t, err)
	return &harness{flow: flow, store: store, guilds: guilds, clock: clk}
}

var staff = &discordgo.Member{User: &discordgo.User{ID: "staff"}, Permissions: discordgo.PermissionManageServer}

func command(member *discordgo.Member) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  member,
		Data:    discordgo.ApplicationCommandInteractionData{Name: "studio"},
	}
}

func component(member *discordgo.Member, customID string, values ...string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "g1",
		Member:  member,
		Data:    discordgo.MessageComponentInteractionData{CustomID: customID, Values: values},
	}
}

func modal(member *discordgo.Member, customID, value string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:    discordgo.InteractionModalSubmit,
		GuildID: "g1",
		Member:  member,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: customID,
			Components: []discordgo.MessageComponent{&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: repoInputID, Value: value}},
			}},
		},
	}
}

// customIDs collects every custom id in a response.
func customIDs(cs []discordgo.MessageComponent) []string {
	var out []string
	for _, c := range cs {
		switch c := c.(type) {
		case discordgo.ActionsRow:
			out = append(out, customIDs(c.Components)...)
		case discordgo.Button:
			out = append(out, c.CustomID)
		case discordgo.SelectMenu:
			out = append(out, c.CustomID)
		}
	}
	return out
}

func onlyCustomID(t *testing.T, resp *discordgo.InteractionResponse) string {
	t.Helper()
	require.NotNil(t, resp.Data)
	ids := customIDs(resp.Data.Components)
	require.Len(t, ids, 1)
	return ids[0]
}

// selectOptions returns the options of the select menu in the first row.
func selectOptions(t *testing.T, resp *discordgo.InteractionResponse) []discordgo.SelectMenuOption {
	t.Helper()
	require.NotEmpty(t, resp.Data.Components)
	row, ok := resp.Data.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	return menu.Options
}

func TestFlow_CompleteSetup(t *testing.T) {
	t.Parallel()

	h := newHarness(t, studio.NewInMemoryStore(), nil)
	ctx := context.Background()

	resp, err := h.flow.Start(ctx, command(staff))
	require.NoError(t, err)
	require.Equal(t, "🛠️ Studio Setup", resp.Data.Embeds[0].Title)
	startID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(staff, startID))
	require.NoError(t, err)
	require.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	require.Equal(t, "Step 1: Studio Number", resp.Data.Embeds[0].Title)
	require.Len(t, selectOptions(t, resp), 12)
	numberID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(staff, numberID, "3"))
	require.NoError(t, err)
	require.Equal(t, "Step 2: Studio Year", resp.Data.Embeds[0].Title)
	years := selectOptions(t, resp)
	require.Equal(t, "2025", years[0].Value)
	require.True(t, years[0].Default)
	yearID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(staff, yearID, "2025"))
	require.NoError(t, err)
	require.Equal(t, "Step 3: GitHub Repo", resp.Data.Embeds[0].Title)
	repoID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(staff, repoID))
	require.NoError(t, err)
	require.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	require.Equal(t, repoID, resp.Data.CustomID)

	resp, err = h.flow.HandleModal(ctx, modal(staff, repoID, "https://github.com/UQcsse3200/2025-studio-3.git"))
	require.NoError(t, err)
	require.Equal(t, "Step 4: Confirm", resp.Data.Embeds[0].Title)
	require.Contains(t, resp.Data.Embeds[0].Description, "Studio 3 - 2025")
	require.Contains(t, resp.Data.Embeds[0].Description, "https://github.com/UQcsse3200/2025-studio-3")
	confirmID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(staff, confirmID))
	require.NoError(t, err)
	require.Equal(t, "🎉 Studio Setup Complete!", resp.Data.Embeds[0].Title)
	require.Empty(t, resp.Data.Components)

	st, err := h.store.GetByGuild(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 3, st.Number)
	require.Equal(t, 2025, st.Year)
	require.Equal(t, "2025-studio-3", st.RepoName)
	require.True(t, h.guilds.Contains("g1"))
	require.Equal(t, 0, h.flow.Live())

	// The confirm button was consumed with the session.
	resp, err = h.flow.HandleComponent(ctx, component(staff, confirmID))
	require.NoError(t, err)
	require.Equal(t, "⌛ Setup Expired", resp.Data.Embeds[0].Title)
}

func TestFlow_RejectsWithoutManageGuild(t *testing.T) {
	t.Parallel()

	h := newHarness(t, studio.NewInMemoryStore(), nil)
	ctx := context.Background()
	student := &discordgo.Member{User: &discordgo.User{ID: "student"}, Permissions: discordgo.PermissionSendMessages}

	resp, err := h.flow.Start(ctx, command(student))
	require.NoError(t, err)
	require.Equal(t, unauthorizedMsg, resp.Data.Content)
	require.Equal(t, 0, h.flow.Live())

	resp, err = h.flow.Start(ctx, command(staff))
	require.NoError(t, err)
	startID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(student, startID))
	require.NoError(t, err)
	require.Equal(t, unauthorizedMsg, resp.Data.Content)
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)

	admin := &discordgo.Member{User: &discordgo.User{ID: "admin"}, Permissions: discordgo.PermissionAdministrator}
	resp, err = h.flow.HandleComponent(ctx, component(admin, startID))
	require.NoError(t, err)
	require.Equal(t, "Step 1: Studio Number", resp.Data.Embeds[0].Title)
}

func TestFlow_DoubleClickAppliesOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, studio.NewInMemoryStore(), nil)
	ctx := context.Background()

	resp, err := h.flow.Start(ctx, command(staff))
	require.NoError(t, err)
	startID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(staff, startID))
	require.NoError(t, err)
	numberID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleComponent(ctx, component(staff, startID))
	require.NoError(t, err)
	require.Equal(t, "That step has already been answered.", resp.Data.Content)

	_, err = h.flow.HandleComponent(ctx, component(staff, numberID, "4"))
	require.NoError(t, err)
	resp, err = h.flow.HandleComponent(ctx, component(staff, numberID, "5"))
	require.NoError(t, err)
	require.Equal(t, "That step has already been answered.", resp.Data.Content)
}

func TestFlow_StepBeforeStartIsRefused(t *testing.T) {
	t.Parallel()

	h := newHarness(t, studio.NewInMemoryStore(), nil)
	ctx := context.Background()

	resp, err := h.flow.Start(ctx, command(staff))
	require.NoError(t, err)
	_, parts := discord.SplitCustomID(onlyCustomID(t, resp))
	early := discord.CustomID(Prefix, parts[0], actionNumber, "0")

	resp, err = h.flow.HandleComponent(ctx, component(staff, early, "3"))
	require.NoError(t, err)
	require.Equal(t, notStartedMsg, resp.Data.Content)
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	require.Equal(t, 1, h.flow.Live(), "the session survives")
}

func TestFlow_RetryKeepsStep(t *testing.T) {
	t.Parallel()

	check := func(_ context.Context, name string) (bool, error) { return name == "real-repo", nil }
	h := newHarness(t, studio.NewInMemoryStore(), check)
	ctx := context.Background()

	resp, err := h.flow.Start(ctx, command(staff))
	require.NoError(t, err)
	resp, err = h.flow.HandleComponent(ctx, component(staff, onlyCustomID(t, resp)))
	require.NoError(t, err)

	// Year outside the window is re-asked with the validation message.
	resp, err = h.flow.HandleComponent(ctx, component(staff, onlyCustomID(t, resp), "2"))
	require.NoError(t, err)
	yearID := onlyCustomID(t, resp)
	resp, err = h.flow.HandleComponent(ctx, component(staff, yearID, "2011"))
	require.NoError(t, err)
	require.Equal(t, "Step 2: Studio Year", resp.Data.Embeds[0].Title)
	require.True(t, strings.HasPrefix(resp.Data.Embeds[0].Description, "❌ Year must be between 2020 and 2025"))
	require.Equal(t, yearID, onlyCustomID(t, resp))

	resp, err = h.flow.HandleComponent(ctx, component(staff, yearID, "2024"))
	require.NoError(t, err)
	repoID := onlyCustomID(t, resp)

	resp, err = h.flow.HandleModal(ctx, modal(staff, repoID, "UQcsse3200/missing"))
	require.NoError(t, err)
	require.Equal(t, "Step 3: GitHub Repo", resp.Data.Embeds[0].Title)
	require.Contains(t, resp.Data.Embeds[0].Description, "'missing' is not a repository in UQcsse3200")

	resp, err = h.flow.HandleModal(ctx, modal(staff, repoID, "real-repo"))
	require.NoError(t, err)
	require.Equal(t, "Step 4: Confirm", resp.Data.Embeds[0].Title)
}

func TestFlow_Expiry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, studio.NewInMemoryStore(), nil)
	ctx := context.Background()

	resp, err := h.flow.Start(ctx, command(staff))
	require.NoError(t, err)
	startID := onlyCustomID(t, resp)

	h.clock.Advance(wizard.DefaultTimeout)
	resp, err = h.flow.HandleComponent(ctx, component(staff, startID))
	require.NoError(t, err)
	require.Equal(t, "⌛ Setup Expired", resp.Data.Embeds[0].Title)
	require.Equal(t, 0, h.flow.Live())
}

func TestFlow_PersistenceFailureShowsFailedEmbed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, brokenStore{Store: studio.NewInMemoryStore()}, nil)
	ctx := context.Background()

	resp, err := h.flow.Start(ctx, command(staff))
	require.NoError(t, err)
	steps := []struct {
		values []string
		modal  string
	}{
		{}, {values: []string{"1"}}, {values: []string{"2025"}}, {modal: "game"},
	}
	for _, st := range steps {
		id := onlyCustomID(t, resp)
		if st.modal != "" {
			resp, err = h.flow.HandleModal(ctx, modal(staff, id, st.modal))
		} else {
			resp, err = h.flow.HandleComponent(ctx, component(staff, id, st.values...))
		}
		require.NoError(t, err)
	}

	resp, err = h.flow.HandleComponent(ctx, component(staff, onlyCustomID(t, resp)))
	require.NoError(t, err)
	require.Equal(t, "❌ Setup Failed", resp.Data.Embeds[0].Title)
	require.False(t, h.guilds.Contains("g1"))
}

func TestFlow_PromptAndBadIDs(t *testing.T) {
	t.Parallel()

	h := newHarness(t, studio.NewInMemoryStore(), nil)
	ctx := context.Background()

	msg, err := h.flow.Prompt("g1", "CSSE3200 Studio 1")
	require.NoError(t, err)
	require.Equal(t, "Welcome to CSSE Bot!", msg.Embeds[0].Title)
	require.Contains(t, msg.Embeds[0].Description, "CSSE3200 Studio 1")
	require.Equal(t, 1, h.flow.Live())

	for _, id := range []string{"setup", "setup:nope:start:-1", "setup:a:b", "other:x:start:1"} {
		resp, err := h.flow.HandleComponent(ctx, component(staff, id))
		require.NoError(t, err)
		require.Equal(t, "⌛ Setup Expired", resp.Data.Embeds[0].Title, id)
	}
}

func TestNew_RejectsOversizedSelect(t *testing.T) {
	t.Parallel()

	store := studio.NewInMemoryStore()
	rec, err := studio.NewReconciler(store, studio.NewGuildCache(store))
	require.NoError(t, err)
	_, err = New(rec, Config{NumStudios: 26})
	require.ErrorIs(t, err, studio.ErrInvalidInput)

	_, err = New(nil, Config{})
	require.ErrorIs(t, err, studio.ErrInvalidInput)
}
