// Package auth caches the broker's daily access token.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	ErrNoToken      = errors.New("no cached access token")
	ErrTokenExpired = errors.New("cached access token is from an earlier day")
	ErrEmptyInput   = errors.New("no access token entered")
)

// Token is an access token and when it was issued. Tokens expire at the end
// of the day they were issued.
type Token struct {
	AccessToken string    `yaml:"access_token" json:"access_token"`
	Date        time.Time `yaml:"date" json:"date"`
}

// ValidAt reports whether t was issued on the same calendar day as now, in
// now's location.
func (t Token) ValidAt(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	y1, m1, d1 := t.Date.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Store persists the current token.
type Store interface {
	Load(ctx context.Context) (Token, error)
	Save(ctx context.Context, t Token) error
	Clear(ctx context.Context) error
}

// Prompter asks the user for a fresh token.
type Prompter interface {
	Prompt(ctx context.Context, loginURL string) (string, error)
}

// LinePrompter prints the login URL to Out and reads one line from In.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p LinePrompter) Prompt(ctx context.Context, loginURL string) (string, error) {
	fmt.Fprintf(p.Out, "Login for %s\nENTER ACCESS TOKEN >>> ", loginURL)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		token := strings.TrimSpace(r.line)
		if token == "" {
			if r.err != nil && !errors.Is(r.err, io.EOF) {
				return "", fmt.Errorf("read access token: %w", r.err)
			}
			return "", ErrEmptyInput
		}
		return token, nil
	}
}

// Session hands out today's token, asking for a new one when the cache is
// empty, stale or unreadable.
type Session struct {
	store    Store
	prompter Prompter
	loginURL string
	now      func() time.Time
}

func NewSession(store Store, prompter Prompter, loginURL string) *Session {
	return &Session{store: store, prompter: prompter, loginURL: loginURL, now: time.Now}
}

// AccessToken returns the cached token if it is from today and otherwise
// prompts and caches the answer. The bool reports whether it was prompted.
func (s *Session) AccessToken(ctx context.Context) (string, bool, error) {
	t, err := s.store.Load(ctx)
	if err == nil && t.ValidAt(s.now()) {
		return t.AccessToken, false, nil
	}
	token, err := s.Renew(ctx)
	return token, true, err
}

// Renew discards the cached token and prompts for a new one.
func (s *Session) Renew(ctx context.Context) (string, error) {
	token, err := s.prompter.Prompt(ctx, s.loginURL)
	if err != nil {
		return "", err
	}
	if err := s.store.Save(ctx, Token{AccessToken: token, Date: s.now()}); err != nil {
		return "", fmt.Errorf("cache access token: %w", err)
	}
	return token, nil
}
