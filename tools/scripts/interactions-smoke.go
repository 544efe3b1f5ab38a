// Package main provides a CI-friendly smoke test for a running bot's HTTP surface.
//
// It validates:
//   - /healthz and /readyz
//   - unsigned interactions are rejected
//   - a signed PING is answered with PONG
//   - a signed /say hello command is routed and answered
//   - /metrics exposes the interaction counter
//
// The server must be started with CSSEBOT_DISCORD_PUBLIC_KEY set to the public half of -key.
// Run with -gen to print a fresh key pair.
package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func main() {
	var (
		base    = flag.String("url", "http://127.0.0.1:8080", "Bot base URL")
		keyHex  = flag.String("key", os.Getenv("CSSEBOT_SMOKE_PRIVATE_KEY"), "Hex ed25519 private key (seed or full key)")
		gen     = flag.Bool("gen", false, "Print a new key pair and exit")
		text    = flag.String("text", "smoke", "Text for /say hello")
		timeout = flag.Duration("timeout", 5*time.Second, "Per-request timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *gen {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			fatalf("generate key: %v", err)
		}
		fmt.Printf("CSSEBOT_DISCORD_PUBLIC_KEY=%s\nCSSEBOT_SMOKE_PRIVATE_KEY=%s\n", hex.EncodeToString(pub), hex.EncodeToString(priv.Seed()))
		return
	}

	priv, err := parsePrivateKey(*keyHex)
	if err != nil {
		fatalf("invalid -key: %v", err)
	}
	c := &smokeClient{base: strings.TrimRight(*base, "/"), priv: priv, http: &http.Client{Timeout: *timeout}, verbose: *verbose}
	ctx := context.Background()

	c.mustStatus(ctx, http.MethodGet, "/healthz", nil, false, http.StatusOK)
	c.mustStatus(ctx, http.MethodGet, "/readyz", nil, false, http.StatusOK)
	ping := &discordgo.Interaction{ID: "smoke-ping", Type: discordgo.InteractionPing, Token: "smoke", Version: 1}
	c.mustStatus(ctx, http.MethodPost, "/interactions", ping, false, http.StatusUnauthorized)

	var pong interactionResponse
	c.mustJSON(ctx, ping, &pong)
	if pong.Type != discordgo.InteractionResponsePong {
		fatalf("ping: got response type %d want %d", pong.Type, discordgo.InteractionResponsePong)
	}

	var said interactionResponse
	c.mustJSON(ctx, sayHello(*text), &said)
	want := *text + " - BOOM, said a thing"
	if said.Data == nil || said.Data.Content != want {
		fatalf("say hello: got %+v want content %q", said.Data, want)
	}

	body := c.mustStatus(ctx, http.MethodGet, "/metrics", nil, false, http.StatusOK)
	if !strings.Contains(string(body), "cssebot_discord_interactions_total") {
		fatalf("metrics: interaction counter missing")
	}

	fmt.Printf("OK: %s ping+command answered\n", c.base)
}

// interactionResponse is the part of a response the smoke test checks.
type interactionResponse struct {
	Type discordgo.InteractionResponseType `json:"type"`
	Data *struct {
		Content string `json:"content"`
	} `json:"data"`
}

func sayHello(text string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "smoke-cmd",
		Type:    discordgo.InteractionApplicationCommand,
		Token:   "smoke",
		Version: 1,
		User:    &discordgo.User{ID: "0", Username: "smoke"},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "say",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name: "hello",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "thing_to_say", Type: discordgo.ApplicationCommandOptionString, Value: text},
				},
			}},
		},
	}
}

// sign adds the headers Discord sends with every interaction: an ed25519 signature over timestamp+body.
func sign(priv ed25519.PrivateKey, req *http.Request, timestamp string, body []byte) {
	msg := append([]byte(timestamp), body...)
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(ed25519.Sign(priv, msg)))
	req.Header.Set("X-Signature-Timestamp", timestamp)
}

func parsePrivateKey(raw string) (ed25519.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, errors.New("want a 32-byte seed or a 64-byte key")
	}
}

type smokeClient struct {
	base    string
	priv    ed25519.PrivateKey
	http    *http.Client
	verbose bool
}

func (c *smokeClient) do(ctx context.Context, method, path string, payload any, signed bool) (int, []byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		sign(c.priv, req, strconv.FormatInt(time.Now().Unix(), 10), body)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if c.verbose {
		fmt.Printf("%s %s -> %d\n", method, path, resp.StatusCode)
	}
	return resp.StatusCode, out, err
}

func (c *smokeClient) mustStatus(ctx context.Context, method, path string, payload any, sign bool, want int) []byte {
	status, body, err := c.do(ctx, method, path, payload, sign)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if status != want {
		fatalf("%s %s: status %d want %d: %s", method, path, status, want, strings.TrimSpace(string(body)))
	}
	return body
}

func (c *smokeClient) mustJSON(ctx context.Context, payload any, out any) {
	body := c.mustStatus(ctx, http.MethodPost, "/interactions", payload, true, http.StatusOK)
	if err := json.Unmarshal(body, out); err != nil {
		fatalf("decode interaction response: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
