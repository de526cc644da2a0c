package auditlog

import (
	"context"
	"net"
)

// Origin describes the request that caused an audited write. Stores read it
// from the context so engine signatures stay free of transport details.
type Origin struct {
	RequestID string
	IP        net.IP
	UserAgent string
}

type ctxKeyOrigin struct{}

func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, ctxKeyOrigin{}, origin)
}

func OriginFromContext(ctx context.Context) Origin {
	origin, _ := ctx.Value(ctxKeyOrigin{}).(Origin)
	return origin
}

// Apply copies the origin onto the event.
func (o Origin) Apply(event Event) Event {
	event.RequestID = o.RequestID
	event.IP = o.IP
	event.UserAgent = o.UserAgent
	return event
}
