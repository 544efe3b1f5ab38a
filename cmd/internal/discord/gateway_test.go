package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

// fakeGateway serves one scripted connection per Accept.
type fakeGateway struct {
	conns    atomic.Int32
	script   func(ctx context.Context, n int32, conn *websocket.Conn)
	identify chan map[string]any
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.CloseNow() }()
	n := f.conns.Add(1)
	f.script(r.Context(), n, conn)
}

func (f *fakeGateway) write(ctx context.Context, conn *websocket.Conn, v any) {
	b, _ := json.Marshal(v)
	_ = conn.Write(ctx, websocket.MessageText, b)
}

func (f *fakeGateway) readOp(ctx context.Context, conn *websocket.Conn) (int, json.RawMessage) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return -1, nil
	}
	var p discordgo.Event
	_ = json.Unmarshal(data, &p)
	return p.Operation, p.RawData
}

func (f *fakeGateway) handshake(ctx context.Context, conn *websocket.Conn, heartbeatMS int) {
	f.write(ctx, conn, map[string]any{"op": opHello, "d": map[string]any{"heartbeat_interval": heartbeatMS}})
	op, d := f.readOp(ctx, conn)
	if op == opIdentify && f.identify != nil {
		var m map[string]any
		_ = json.Unmarshal(d, &m)
		select {
		case f.identify <- m:
		default:
		}
	}
}

// drain reads until the client goes away.
func (f *fakeGateway) drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func startFakeGateway(t *testing.T, f *fakeGateway) func(context.Context) (string, error) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	return func(context.Context) (string, error) { return u, nil }
}

func TestGateway_IdentifyAndDispatch(t *testing.T) {
	t.Parallel()

	f := &fakeGateway{identify: make(chan map[string]any, 1)}
	f.script = func(ctx context.Context, _ int32, conn *websocket.Conn) {
		f.handshake(ctx, conn, 60_000)
		f.write(ctx, conn, map[string]any{"op": opDispatch, "t": "READY", "s": 1, "d": map[string]any{"session_id": "s1", "user": map[string]any{"id": "b1", "username": "cssebot"}}})
		f.write(ctx, conn, map[string]any{"op": opDispatch, "t": "GUILD_CREATE", "s": 2, "d": map[string]any{"id": "g1", "name": "Studio 1"}})
		f.drain(ctx, conn)
	}
	resolve := startFakeGateway(t, f)

	var (
		mu     sync.Mutex
		guilds []*discordgo.Guild
	)
	got := make(chan struct{}, 1)
	g, err := NewGateway("tok", discordgo.IntentsGuilds|discordgo.IntentsGuildMembers, resolve, func(_ context.Context, event string, data json.RawMessage) {
		if event != "GUILD_CREATE" {
			return
		}
		var gd discordgo.GuildCreate
		require.NoError(t, json.Unmarshal(data, &gd))
		mu.Lock()
		guilds = append(guilds, gd.Guild)
		mu.Unlock()
		got <- struct{}{}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	select {
	case id := <-f.identify:
		require.Equal(t, "tok", id["token"])
		require.Equal(t, float64(discordgo.IntentsGuilds|discordgo.IntentsGuildMembers), id["intents"])
		props, ok := id["properties"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "cssebot", props["$browser"])
	case <-time.After(5 * time.Second):
		t.Fatal("no identify")
	}
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no dispatch")
	}
	require.Eventually(t, g.Ready, time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, "Studio 1", guilds[0].Name)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestGateway_HeartbeatsAndReconnects(t *testing.T) {
	t.Parallel()

	beats := make(chan int64, 4)
	f := &fakeGateway{}
	f.script = func(ctx context.Context, n int32, conn *websocket.Conn) {
		f.handshake(ctx, conn, 50)
		if n == 1 {
			f.write(ctx, conn, map[string]any{"op": opDispatch, "t": "READY", "s": 7, "d": map[string]any{}})
			op, d := f.readOp(ctx, conn)
			if op == opHeartbeat {
				var s int64
				_ = json.Unmarshal(d, &s)
				beats <- s
			}
			f.write(ctx, conn, map[string]any{"op": opReconnect, "d": nil})
		}
		f.drain(ctx, conn)
	}
	resolve := startFakeGateway(t, f)

	g, err := NewGateway("tok", discordgo.IntentsGuilds, resolve, func(context.Context, string, json.RawMessage) {},
		WithBackoff(10*time.Millisecond, 20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = g.Run(ctx) }()

	select {
	case s := <-beats:
		require.Equal(t, int64(7), s, "heartbeat carries the last sequence")
	case <-time.After(5 * time.Second):
		t.Fatal("no heartbeat")
	}
	require.Eventually(t, func() bool { return f.conns.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestGateway_FatalCloseStops(t *testing.T) {
	t.Parallel()

	f := &fakeGateway{}
	f.script = func(ctx context.Context, _ int32, conn *websocket.Conn) {
		f.handshake(ctx, conn, 60_000)
		_ = conn.Close(websocket.StatusCode(4004), "Authentication failed.")
	}
	resolve := startFakeGateway(t, f)

	g, err := NewGateway("bad", discordgo.IntentsGuilds, resolve, func(context.Context, string, json.RawMessage) {},
		WithBackoff(time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = g.Run(ctx)
	var fatal *FatalCloseError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, websocket.StatusCode(4004), fatal.Code)
	require.Equal(t, int32(1), f.conns.Load())
}

func TestGatewayURL(t *testing.T) {
	t.Parallel()

	u, err := gatewayURL("wss://gateway.discord.gg")
	require.NoError(t, err)
	require.Equal(t, "wss://gateway.discord.gg?encoding=json&v="+discordgo.APIVersion, u)

	_, err = gatewayURL("::")
	require.Error(t, err)
}
