package mock

import (
	"context"

	"github.com/fwojciec/streamchat"
)

var _ streamchat.Generator = (*Generator)(nil)

// Generator is a test double for streamchat.Generator.
// Set GenerateFn before calling Generate.
type Generator struct {
	GenerateFn func(ctx context.Context, history []streamchat.Message, emit func(string) error) error
}

// Generate delegates to GenerateFn.
func (g *Generator) Generate(ctx context.Context, history []streamchat.Message, emit func(string) error) error {
	return g.GenerateFn(ctx, history, emit)
}

// Fragments returns a Generator that emits each fragment in turn and then
// returns err.
func Fragments(err error, fragments ...string) *Generator {
	return &Generator{GenerateFn: func(ctx context.Context, _ []streamchat.Message, emit func(string) error) error {
		for _, f := range fragments {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(f); err != nil {
				return err
			}
		}
		return err
	}}
}
