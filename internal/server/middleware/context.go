package middleware

import (
	"context"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
)

func SubjectFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeySubject).(string)
	return v, ok
}
