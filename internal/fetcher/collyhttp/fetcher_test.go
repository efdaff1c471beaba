package collyhttp

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankrot/harvester/internal/auth"
)

func newMockedSession(t *testing.T, cookies []auth.Cookie) (*Session, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	s, err := NewSession(Config{
		BaseURL:   "https://x",
		UserAgent: "harvester-test",
		Timeout:   2 * time.Second,
		Cookies:   cookies,
		Transport: transport,
	})
	require.NoError(t, err)
	return s, transport
}

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	s, transport := newMockedSession(t, nil)
	transport.RegisterResponder("GET", "https://x/lot/1",
		httpmock.NewStringResponder(200, "<html><body>lot one</body></html>"))

	body, err := s.Fetch(context.Background(), "https://x/lot/1")
	require.NoError(t, err)
	assert.Contains(t, body, "lot one")
}

func TestFetchSendsSessionCookies(t *testing.T) {
	t.Parallel()

	s, transport := newMockedSession(t, []auth.Cookie{
		{Name: "session", Value: "abc", Path: "/"},
	})

	var gotCookie string
	transport.RegisterResponder("GET", "https://x/lot/2",
		func(req *http.Request) (*http.Response, error) {
			if c, err := req.Cookie("session"); err == nil {
				gotCookie = c.Value
			}
			return httpmock.NewStringResponse(200, "ok"), nil
		})

	_, err := s.Fetch(context.Background(), "https://x/lot/2")
	require.NoError(t, err)
	assert.Equal(t, "abc", gotCookie)
}

func TestFetchErrorStatus(t *testing.T) {
	t.Parallel()

	s, transport := newMockedSession(t, nil)
	transport.RegisterResponder("GET", "https://x/lot/3",
		httpmock.NewStringResponder(403, "forbidden"))

	_, err := s.Fetch(context.Background(), "https://x/lot/3")
	assert.Error(t, err)
}

func TestFetchSequentialReuse(t *testing.T) {
	t.Parallel()

	s, transport := newMockedSession(t, nil)
	transport.RegisterResponder("GET", "https://x/lot/a",
		httpmock.NewStringResponder(200, "page a"))
	transport.RegisterResponder("GET", "https://x/lot/b",
		httpmock.NewStringResponder(200, "page b"))

	bodyA, err := s.Fetch(context.Background(), "https://x/lot/a")
	require.NoError(t, err)
	bodyB, err := s.Fetch(context.Background(), "https://x/lot/b")
	require.NoError(t, err)
	assert.Equal(t, "page a", bodyA)
	assert.Equal(t, "page b", bodyB)

	// Same URL again: sessions may revisit across runs.
	bodyA2, err := s.Fetch(context.Background(), "https://x/lot/a")
	require.NoError(t, err)
	assert.Equal(t, bodyA, bodyA2)
}
