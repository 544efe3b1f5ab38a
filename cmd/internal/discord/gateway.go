package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/coder/websocket"
)

const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

const (
	gwDefaultBackoffMin   = time.Second
	gwDefaultBackoffMax   = time.Minute
	gwDefaultWriteTimeout = 5 * time.Second
	gwHelloTimeout        = 20 * time.Second
	gwReadLimit           = 8 << 20
)

// largeThreshold is the member count above which GUILD_CREATE omits offline members.
const largeThreshold = 250

var (
	errReconnect      = errors.New("discord: gateway requested reconnect")
	errInvalidSession = errors.New("discord: gateway invalidated session")
	errZombie         = errors.New("discord: heartbeat not acknowledged")
)

// FatalCloseError is a gateway close code that reconnecting cannot fix (bad token, bad intents).
type FatalCloseError struct {
	Code websocket.StatusCode
}

func (e *FatalCloseError) Error() string {
	return fmt.Sprintf("discord: gateway closed with fatal code %d", int(e.Code))
}

func fatalClose(code websocket.StatusCode) bool {
	switch code {
	case 4004, 4010, 4011, 4012, 4013, 4014:
		return true
	}
	return false
}

// DispatchFunc receives a dispatch event. It runs on its own goroutine.
type DispatchFunc func(ctx context.Context, event string, data json.RawMessage)

// EventObserver counts dispatch events.
type EventObserver interface {
	GatewayEvent(name string)
}

type noopEventObserver struct{}

func (noopEventObserver) GatewayEvent(string) {}

type outgoingPayload struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

// Gateway keeps one bot connection open and hands dispatch events to a DispatchFunc.
// It identifies fresh on every connection; sessions are never resumed.
type Gateway struct {
	token    string
	intents  discordgo.Intent
	resolve  func(ctx context.Context) (string, error)
	dispatch DispatchFunc
	log      *slog.Logger
	obs      EventObserver

	backoffMin   time.Duration
	backoffMax   time.Duration
	writeTimeout time.Duration

	ready atomic.Bool
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

func WithGatewayLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

func WithEventObserver(obs EventObserver) GatewayOption {
	return func(g *Gateway) {
		if obs != nil {
			g.obs = obs
		}
	}
}

// WithBackoff bounds the reconnect delay.
func WithBackoff(minDelay, maxDelay time.Duration) GatewayOption {
	return func(g *Gateway) {
		if minDelay > 0 {
			g.backoffMin = minDelay
		}
		if maxDelay >= g.backoffMin {
			g.backoffMax = maxDelay
		}
	}
}

// NewGateway constructs a Gateway. resolve returns the websocket URL for each connection attempt.
func NewGateway(token string, intents discordgo.Intent, resolve func(context.Context) (string, error), dispatch DispatchFunc, opts ...GatewayOption) (*Gateway, error) {
	if token == "" || resolve == nil || dispatch == nil {
		return nil, errors.New("discord: gateway needs a token, url resolver and dispatch func")
	}
	g := &Gateway{
		token:        token,
		intents:      intents,
		resolve:      resolve,
		dispatch:     dispatch,
		log:          slog.Default(),
		obs:          noopEventObserver{},
		backoffMin:   gwDefaultBackoffMin,
		backoffMax:   gwDefaultBackoffMax,
		writeTimeout: gwDefaultWriteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Ready reports whether the current connection has received READY.
func (g *Gateway) Ready() bool { return g.ready.Load() }

// Run connects and reconnects with exponential backoff until ctx ends or a fatal close code arrives.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := g.backoffMin
	for {
		readied, err := g.session(ctx)
		g.ready.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		var fatal *FatalCloseError
		if errors.As(err, &fatal) {
			g.log.Error("discord.gateway.fatal", "code", int(fatal.Code))
			return err
		}
		if readied {
			backoff = g.backoffMin
		}
		g.log.Warn("discord.gateway.reconnect", "err", err, "backoff", backoff.String())

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		backoff = min(backoff*2, g.backoffMax)
	}
}

// session runs one connection. It reports whether READY was seen.
func (g *Gateway) session(parent context.Context) (bool, error) {
	raw, err := g.resolve(parent)
	if err != nil {
		return false, fmt.Errorf("resolve gateway url: %w", err)
	}
	u, err := gatewayURL(raw)
	if err != nil {
		return false, err
	}

	conn, _, err := websocket.Dial(parent, u, nil)
	if err != nil {
		return false, fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(gwReadLimit)

	ctx, cancel := context.WithCancel(parent)
	var (
		closeOnce sync.Once
		handlers  sync.WaitGroup
		zombie    atomic.Bool
		readied   bool
	)
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			_ = conn.Close(code, reason)
			cancel()
		})
	}
	defer func() {
		shutdown(websocket.StatusNormalClosure, "bye")
		handlers.Wait()
	}()

	helloCtx, helloCancel := context.WithTimeout(ctx, gwHelloTimeout)
	hello, err := readPayload(helloCtx, conn)
	helloCancel()
	if err != nil {
		return false, fmt.Errorf("read hello: %w", classifyClose(err))
	}
	if hello.Operation != opHello {
		return false, fmt.Errorf("discord: expected hello, got op %d", hello.Operation)
	}
	var h struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.RawData, &h); err != nil || h.HeartbeatInterval <= 0 {
		return false, errors.New("discord: bad hello payload")
	}
	interval := time.Duration(h.HeartbeatInterval) * time.Millisecond

	if err := g.send(ctx, conn, opIdentify, discordgo.Identify{
		Token:          g.token,
		Intents:        g.intents,
		LargeThreshold: largeThreshold,
		Properties: discordgo.IdentifyProperties{
			OS:      runtime.GOOS,
			Browser: "cssebot",
			Device:  "cssebot",
		},
	}); err != nil {
		return false, fmt.Errorf("identify: %w", err)
	}

	var (
		seq   atomic.Int64
		acked atomic.Bool
	)
	seq.Store(-1)
	acked.Store(true)

	heartbeat := func() error {
		var d any
		if s := seq.Load(); s >= 0 {
			d = s
		}
		return g.send(ctx, conn, opHeartbeat, d)
	}

	handlers.Add(1)
	go func() {
		defer handlers.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if !acked.Swap(false) {
					zombie.Store(true)
					g.log.Info("discord.gateway.zombie")
					shutdown(websocket.StatusGoingAway, "heartbeat not acknowledged")
					return
				}
				if err := heartbeat(); err != nil {
					g.log.Info("discord.gateway.heartbeat.fail", "err", err)
					shutdown(websocket.StatusAbnormalClosure, "heartbeat failed")
					return
				}
			}
		}
	}()

	for {
		p, err := readPayload(ctx, conn)
		if err != nil {
			if zombie.Load() {
				return readied, errZombie
			}
			return readied, classifyClose(err)
		}
		if p.Sequence > 0 {
			seq.Store(p.Sequence)
		}

		switch p.Operation {
		case opDispatch:
			if p.Type == "READY" {
				readied = true
				g.ready.Store(true)
				var r discordgo.Ready
				if err := json.Unmarshal(p.RawData, &r); err == nil && r.User != nil {
					g.log.Info("discord.gateway.ready", "user", r.User.Username, "session_id", r.SessionID)
				} else {
					g.log.Info("discord.gateway.ready")
				}
			}
			g.obs.GatewayEvent(p.Type)
			handlers.Add(1)
			go func(event string, data json.RawMessage) {
				defer handlers.Done()
				g.dispatch(parent, event, data)
			}(p.Type, p.RawData)
		case opHeartbeat:
			if err := heartbeat(); err != nil {
				return readied, err
			}
		case opHeartbeatAck:
			acked.Store(true)
		case opReconnect:
			return readied, errReconnect
		case opInvalidSession:
			return readied, errInvalidSession
		}
	}
}

func (g *Gateway) send(parent context.Context, conn *websocket.Conn, op int, d any) error {
	b, err := json.Marshal(outgoingPayload{Op: op, D: d})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(parent, g.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, b)
}

func readPayload(ctx context.Context, conn *websocket.Conn) (*discordgo.Event, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var p discordgo.Event
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode gateway payload: %w", err)
	}
	return &p, nil
}

func classifyClose(err error) error {
	if code := websocket.CloseStatus(err); code != -1 {
		if fatalClose(code) {
			return &FatalCloseError{Code: code}
		}
		return fmt.Errorf("gateway closed (%d): %w", int(code), err)
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return fmt.Errorf("gateway connection lost: %w", err)
	}
	return err
}

func gatewayURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("discord: bad gateway url %q", raw)
	}
	q := u.Query()
	q.Set("v", discordgo.APIVersion)
	q.Set("encoding", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
