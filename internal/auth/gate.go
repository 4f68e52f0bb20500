package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"quizee-service/internal/domain"
	"quizee-service/internal/stream"
)

// ErrPromptDismissed is returned by a Prompter when the user closes the login
// prompt without signing in.
var ErrPromptDismissed = errors.New("login prompt dismissed")

// Prompter asks the user for a token. Implementations block until the user
// answers, dismisses the prompt or ctx is done.
type Prompter interface {
	Prompt(ctx context.Context) (string, error)
}

// Gate tracks whether the current session is signed in and asks for a login
// when an operation needs one.
type Gate struct {
	tokens   *Tokens
	prompter Prompter

	mu       sync.Mutex
	identity *Identity
	authed   *stream.Replay[bool]
}

func NewGate(tokens *Tokens, prompter Prompter) *Gate {
	g := &Gate{
		tokens:   tokens,
		prompter: prompter,
		authed:   stream.NewReplay[bool](),
	}
	g.authed.Publish(false)
	return g
}

func (g *Gate) IsAuthenticated() stream.Source[bool] { return g.authed }

func (g *Gate) Identity() (Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return Identity{}, false
	}
	return *g.identity, true
}

// Authenticate signs the session in with a bearer token.
func (g *Gate) Authenticate(token string) (Identity, error) {
	id, err := g.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	g.mu.Lock()
	g.identity = &id
	g.mu.Unlock()
	g.authed.Publish(true)
	return id, nil
}

// LogIn prompts for a token and authenticates with it.
func (g *Gate) LogIn(ctx context.Context) (Identity, error) {
	if g.prompter == nil {
		return Identity{}, ErrPromptDismissed
	}
	token, err := g.prompter.Prompt(ctx)
	if err != nil {
		return Identity{}, err
	}
	return g.Authenticate(token)
}

func (g *Gate) LogOut() {
	g.mu.Lock()
	wasIn := g.identity != nil
	g.identity = nil
	g.mu.Unlock()
	if wasIn {
		g.authed.Publish(false)
	}
}

// Require returns the signed-in identity, prompting once when there is none.
// Any failure to sign in surfaces as domain.ErrAuthRequired.
func (g *Gate) Require(ctx context.Context) (Identity, error) {
	if id, ok := g.Identity(); ok {
		return id, nil
	}
	id, err := g.LogIn(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthRequired, err)
	}
	return id, nil
}
