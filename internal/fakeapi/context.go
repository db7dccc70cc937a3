package fakeapi

import (
	"context"
	"net/http"
)

func contextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

func userFromRequest(r *http.Request) string {
	user, _ := r.Context().Value(contextKeyUser).(string)
	return user
}
