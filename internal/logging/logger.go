// Package logging is the structured logger shared by the jobs. Components
// receive a Logger and derive a child with With("module", name).
package logging

import "context"

// Logger takes a message followed by key/value pairs:
//
//	log.Info(ctx, "period uploaded", "path", path, "keys", n)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)

	// Warn is for conditions a run survives, such as an origin outside
	// the allow-list or a run started outside its window.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
}

// Nop drops every record.
type Nop struct{}

func (Nop) Debug(context.Context, string, ...any) {}
func (Nop) Info(context.Context, string, ...any)  {}
func (Nop) Warn(context.Context, string, ...any)  {}
func (Nop) Error(context.Context, string, ...any) {}
func (n Nop) With(...any) Logger                  { return n }

var (
	_ Logger = Nop{}
	_ Logger = (*SlogLogger)(nil)
)
