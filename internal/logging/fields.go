// Package logging configures zerolog and carries structured fields through
// context.Context.
package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// Standard field names shared by every layer.
const (
	FieldLayer    = "layer"
	FieldUseCase  = "usecase"
	FieldAdapter  = "adapter"
	FieldAction   = "action"
	FieldEntityID = "entity_id"
	FieldInstance = "instance"
	FieldSession  = "session"
	FieldStep     = "step"
	FieldPath     = "path"
	FieldDuration = "duration"
)

// FromCtx returns the logger stored in ctx, or a disabled logger.
func FromCtx(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}

// CtxWithFields returns a context whose logger carries fields in addition
// to those already present.
func CtxWithFields(ctx context.Context, fields map[string]any) context.Context {
	logger := FromCtx(ctx).With().Fields(fields).Logger()
	return logger.WithContext(ctx)
}

// Ensure attaches fallback to ctx when ctx carries no usable logger.
func Ensure(ctx context.Context, fallback zerolog.Logger) context.Context {
	if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
		return fallback.WithContext(ctx)
	}
	return ctx
}
