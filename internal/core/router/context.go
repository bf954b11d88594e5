package router

import (
	"context"
	"net/http"

	"github.com/mohammed-shakir/geoview/internal/session"
)

func contextWithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey{}, s)
}

// sessionFrom is only valid below the withSession middleware.
func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxSessionKey{}).(*session.Session)
	return s
}
