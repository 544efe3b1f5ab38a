package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"
)

var (
	ErrBadPublicKey = errors.New("discord: invalid application public key")
	ErrBadSignature = errors.New("discord: invalid request signature")
)

// ParsePublicKey decodes the hex application public key shown in the developer portal.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != ed25519.PublicKeySize {
		return nil, ErrBadPublicKey
	}
	return ed25519.PublicKey(b), nil
}

// VerifyRequest reads at most maxBytes of the body and checks its signature over timestamp+body.
// The body is returned for decoding.
func VerifyRequest(key ed25519.PublicKey, r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, ErrBadSignature
	}
	orig := r.Body
	defer func() { _ = orig.Close() }()
	r.Body = io.NopCloser(io.LimitReader(orig, maxBytes+1))

	if !discordgo.VerifyInteraction(r, key) {
		return nil, ErrBadSignature
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, ErrBadSignature
	}
	return body, nil
}

// SignRequest sets the signature headers on r for body. It exists for tests and local tooling.
func SignRequest(priv ed25519.PrivateKey, r *http.Request, timestamp string, body []byte) {
	msg := append([]byte(timestamp), body...)
	r.Header.Set(headerSignature, hex.EncodeToString(ed25519.Sign(priv, msg)))
	r.Header.Set(headerTimestamp, timestamp)
}
