// Package identity hands out the opaque per-session user identifier that
// scopes document state on the authority.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idPrefix     = "user-"
	suffixLength = 13
	suffixChars  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	sessionIDRegex      = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// Validate rejects ids that are empty or not safe to embed in JSON frames and
// storage keys.
func Validate(id string) error {
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// Generate returns a fresh id of the form user-<unix millis>-<random>.
func Generate() (string, error) {
	suffix, err := gonanoid.Generate(suffixChars, suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return fmt.Sprintf("%s%d-%s", idPrefix, time.Now().UnixMilli(), suffix), nil
}

// Provider generates an id on first use and keeps returning it until Clear.
type Provider struct {
	mu sync.Mutex
	id string
}

func NewProvider() *Provider {
	return &Provider{}
}

// NewFixedProvider returns a provider that starts out holding id.
func NewFixedProvider(id string) (*Provider, error) {
	if err := Validate(id); err != nil {
		return nil, err
	}
	return &Provider{id: id}, nil
}

func (p *Provider) SessionID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id, nil
	}
	id, err := Generate()
	if err != nil {
		return "", err
	}
	p.id = id
	return id, nil
}

// Clear invalidates the current id; the next SessionID call generates a new one.
func (p *Provider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = ""
}
