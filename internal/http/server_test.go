package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"calcweb/internal/domain"
)

type flagSession struct {
	token   string
	cleared int
}

func (f *flagSession) IsAuthenticated() bool { return f.token != "" }

func (f *flagSession) Set(_ context.Context, token string) error {
	f.token = token
	return nil
}

func (f *flagSession) Clear(context.Context) error {
	f.token = ""
	f.cleared++
	return nil
}

func TestRequireSession(t *testing.T) {
	sess := &flagSession{}
	s := &Server{session: sess}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	s.requireSession(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	sess.token = "any-opaque-value"
	rec = httptest.NewRecorder()
	s.requireSession(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestHandleLogout(t *testing.T) {
	sess := &flagSession{token: "t"}
	s := &Server{session: sess}
	rec := httptest.NewRecorder()
	s.handleLogout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 1, sess.cleared)
	assert.False(t, sess.IsAuthenticated())
}

func TestRecordsQuery(t *testing.T) {
	q := recordsQuery(url.Values{"page": {"3"}, "size": {"20"}, "search": {"add"}})
	assert.Equal(t, domain.RecordsQuery{Page: 3, Size: 20, Search: "add"}, q)

	q = recordsQuery(url.Values{"page": {"-1"}, "size": {"x"}})
	assert.Equal(t, domain.RecordsQuery{Page: 0, Size: domain.DefaultPageSize}, q)
}

func TestViewsParse(t *testing.T) {
	v, err := loadViews()
	assert.NoError(t, err)
	for _, name := range pageNames {
		assert.Contains(t, v.pages, name)
	}
}

func TestSameOrigin(t *testing.T) {
	cases := []struct {
		name   string
		origin string
		site   string
		want   bool
	}{
		{"no browser headers", "", "", true},
		{"same origin", "http://127.0.0.1:8080", "same-origin", true},
		{"typed into address bar", "", "none", true},
		{"origin matches host", "http://127.0.0.1:8080", "", true},
		{"cross site", "http://evil.example", "cross-site", false},
		{"same site other port", "http://127.0.0.1:9999", "same-site", false},
		{"origin mismatch", "http://evil.example", "", false},
		{"opaque origin", "null", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:8080/calculator", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if tc.site != "" {
			r.Header.Set("Sec-Fetch-Site", tc.site)
		}
		assert.Equal(t, tc.want, sameOrigin(r), tc.name)
	}
}

func TestRecordsURL(t *testing.T) {
	assert.Equal(t, "/records?page=2&size=20", recordsURL(2, 20, ""))
	assert.Equal(t, "/records?page=0&search=a+b&size=10", recordsURL(0, 10, "a b"))
}
