package auth

import (
	"context"

	"github.com/sirupsen/logrus"

	"calcweb/internal/domain"
	"calcweb/internal/integrations/calcapi"
)

const msgLoginFailed = "Login failed"

// Authenticator exchanges credentials for a session token.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.LoginResponse, error)
}

// TokenSetter commits the token to the session.
type TokenSetter interface {
	Set(ctx context.Context, token string) error
}

// Form is the login view state. It is never persisted.
type Form struct {
	Username string
	Password string
	Error    string
}

type Flow struct {
	api     Authenticator
	session TokenSetter
	log     logrus.FieldLogger
}

func NewFlow(api Authenticator, session TokenSetter, log logrus.FieldLogger) *Flow {
	return &Flow{api: api, session: session, log: log}
}

// Submit returns the form to render next and whether the user is now signed
// in. On failure the form keeps its values and carries the error text.
func (f *Flow) Submit(ctx context.Context, form Form) (Form, bool) {
	form.Error = ""

	resp, err := f.api.Login(ctx, domain.Credentials{Username: form.Username, Password: form.Password})
	if err != nil {
		f.log.WithError(err).WithField("username", form.Username).Info("login rejected")
		form.Error = calcapi.UserMessage(err, msgLoginFailed)
		return form, false
	}
	if err := f.session.Set(ctx, resp.Token); err != nil {
		f.log.WithError(err).Error("failed to persist session")
		form.Error = msgLoginFailed
		return form, false
	}
	return form, true
}
