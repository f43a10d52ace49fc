// Package prompt asks the user to confirm an action or enter a value.
//
// The session service has no live dialog: the client sends its answers with the
// request that needs them, and ContextPrompter reads them back from the context.
package prompt

import (
	"context"
	"errors"
	"strings"
)

// ErrNoAnswer means the question was asked but the request carried no answer.
var ErrNoAnswer = errors.New("prompt: no answer")

type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
	// PromptText returns ok=false when the user cancels.
	PromptText(ctx context.Context, title, label, placeholder string) (value string, ok bool, err error)
}

// Answers is what a client supplies ahead of a prompt. Text is keyed by the
// lowercased field label ("name", "description").
type Answers struct {
	Confirm *bool             `json:"confirm,omitempty"`
	Text    map[string]string `json:"text,omitempty"`
	// Cancel answers every text prompt with a cancel.
	Cancel bool `json:"cancel,omitempty"`
}

type answersKey struct{}

func WithAnswers(ctx context.Context, a Answers) context.Context {
	return context.WithValue(ctx, answersKey{}, a)
}

func answersFrom(ctx context.Context) (Answers, bool) {
	a, ok := ctx.Value(answersKey{}).(Answers)
	return a, ok
}

type ContextPrompter struct{}

func (ContextPrompter) Confirm(ctx context.Context, _ string) (bool, error) {
	a, ok := answersFrom(ctx)
	if !ok || a.Confirm == nil {
		return false, ErrNoAnswer
	}
	return *a.Confirm, nil
}

func (ContextPrompter) PromptText(ctx context.Context, _, label, _ string) (string, bool, error) {
	a, ok := answersFrom(ctx)
	if !ok {
		return "", false, ErrNoAnswer
	}
	if a.Cancel {
		return "", false, nil
	}
	v, ok := a.Text[strings.ToLower(label)]
	if !ok {
		return "", false, ErrNoAnswer
	}
	return v, true, nil
}

// Bool is a helper for building Answers literals.
func Bool(v bool) *bool { return &v }
