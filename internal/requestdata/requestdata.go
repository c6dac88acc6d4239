package requestdata

import (
	"context"

	"github.com/google/uuid"
)

// RequestData is the authenticated caller identity carried through a request.
type RequestData struct {
	UserID uuid.UUID
	Email  string
}

type ctxKey struct{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, ctxKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	rd, _ := ctx.Value(ctxKey{}).(*RequestData)
	return rd
}
