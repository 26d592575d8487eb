package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}
type trxNoKey struct{}

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithActor records who triggered the work: "system"/"scheduler", "webhook"/"storefront", "api"/"operator".
func WithActor(ctx stdcontext.Context, kind, id string) stdcontext.Context {
	return stdcontext.WithValue(ctx, actorKey{}, actor{kind: strings.TrimSpace(kind), id: strings.TrimSpace(id)})
}

func ActorFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a.kind, a.id
}

func WithTrxNo(ctx stdcontext.Context, trxNo string) stdcontext.Context {
	if strings.TrimSpace(trxNo) == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, trxNoKey{}, trxNo)
}

func TrxNoFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(trxNoKey{}).(string)
	return v
}
