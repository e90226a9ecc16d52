package yapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const endpointJSON = `{
	"_id": 345,
	"project_id": 12,
	"title": "Get user info",
	"path": "/user/get_info",
	"method": "GET",
	"req_query": [
		{"name": "name", "desc": "user name", "required": "1"},
		{"name": "verbose", "required": 0}
	],
	"req_body_form": [],
	"res_body": "{\"type\":\"object\"}",
	"unknown_field": {"ignored": true}
}`

type fakeYapi struct {
	t          *testing.T
	logins     atomic.Int32
	token      string
	failFirst  atomic.Int32 // number of 500s to return before succeeding
	loginDelay time.Duration
}

func (f *fakeYapi) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"email":"dev@example.com"`) || !strings.Contains(string(body), `"password":"secret"`) {
			_, _ = io.WriteString(w, `{"errcode":405,"errmsg":"bad credentials"}`)
			return
		}
		time.Sleep(f.loginDelay)
		f.logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "_yapi_token", Value: f.token, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "_yapi_uid", Value: "7", Path: "/"})
		_, _ = io.WriteString(w, `{"errcode":0,"errmsg":"ok","data":{"uid":7}}`)
	})
	mux.HandleFunc("/api/interface/get", func(w http.ResponseWriter, r *http.Request) {
		if f.failFirst.Load() > 0 {
			f.failFirst.Add(-1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if !strings.Contains(r.Header.Get("Cookie"), "_yapi_token="+f.token) {
			_, _ = io.WriteString(w, `{"errcode":40011,"errmsg":"please login"}`)
			return
		}
		switch r.URL.Query().Get("id") {
		case "345":
			_, _ = io.WriteString(w, `{"errcode":0,"errmsg":"ok","data":`+endpointJSON+`}`)
		case "777":
			_, _ = io.WriteString(w, `{"errcode":402,"errmsg":"no permission"}`)
		default:
			_, _ = io.WriteString(w, `{"errcode":490,"errmsg":"not found"}`)
		}
	})
	mux.HandleFunc("/api/project/get", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errcode":0,"data":{"_id":12,"name":"billing-service","basepath":"/billing"}}`)
	})
	return mux
}

func newFake(t *testing.T) (*fakeYapi, *httptest.Server) {
	t.Helper()
	f := &fakeYapi{t: t, token: "tok-1"}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(t *testing.T, server string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(Settings{
		Server:      server,
		Email:       "dev@example.com",
		Password:    "secret",
		HTTPTimeout: 2 * time.Second,
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
	}, opts...)
	require.NoError(t, err)
	return c
}

type memSessions struct {
	mu      sync.Mutex
	cookies map[string]string
}

func (m *memSessions) LoadCookie(_ context.Context, server string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cookies[server], nil
}

func (m *memSessions) SaveCookie(_ context.Context, server, cookie string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cookies == nil {
		m.cookies = map[string]string{}
	}
	m.cookies[server] = cookie
	return nil
}

func TestClient_EndpointLogsInFirst(t *testing.T) {
	t.Parallel()
	f, srv := newFake(t)
	c := newTestClient(t, srv.URL)

	ep, err := c.Endpoint(context.Background(), 345)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.logins.Load())

	assert.Equal(t, int64(345), ep.ID)
	assert.Equal(t, int64(12), ep.ProjectID)
	assert.Equal(t, "/user/get_info", ep.Path)
	assert.True(t, ep.IsGet())
	require.Len(t, ep.ReqQuery, 2)
	assert.True(t, ep.ReqQuery[0].Required.IsSet())
	assert.False(t, ep.ReqQuery[1].Required.IsSet())
	assert.Equal(t, `{"type":"object"}`, ep.ResBody)
}

func TestClient_ExpiredSessionRelogs(t *testing.T) {
	t.Parallel()
	f, srv := newFake(t)
	c := newTestClient(t, srv.URL, WithCookie("_yapi_token=stale"))

	_, err := c.Endpoint(context.Background(), 345)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.logins.Load())
}

func TestClient_ConcurrentCallersShareLogin(t *testing.T) {
	t.Parallel()
	f, srv := newFake(t)
	f.loginDelay = 20 * time.Millisecond
	c := newTestClient(t, srv.URL)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Endpoint(context.Background(), 345)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.logins.Load())
}

func TestClient_NotFound(t *testing.T) {
	t.Parallel()
	_, srv := newFake(t)
	c := newTestClient(t, srv.URL)

	_, err := c.Endpoint(context.Background(), 1)
	var ae *APIError
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, NotFoundError, ae.Code)
	assert.Equal(t, 490, ae.Errcode)
}

func TestClient_RemoteError(t *testing.T) {
	t.Parallel()
	_, srv := newFake(t)
	c := newTestClient(t, srv.URL)

	_, err := c.Endpoint(context.Background(), 777)
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, RemoteError, ae.Code)
	assert.Contains(t, ae.Error(), "no permission")
}

func TestClient_MissingCredentials(t *testing.T) {
	t.Parallel()
	_, srv := newFake(t)
	c, err := NewClient(Settings{Server: srv.URL})
	require.NoError(t, err)

	_, err = c.Endpoint(context.Background(), 345)
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AuthError, ae.Code)
}

func TestClient_BadCredentials(t *testing.T) {
	t.Parallel()
	_, srv := newFake(t)
	c, err := NewClient(Settings{Server: srv.URL, Email: "dev@example.com", Password: "wrong"})
	require.NoError(t, err)

	err = c.Login(context.Background())
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AuthError, ae.Code)
	assert.Contains(t, ae.Error(), "bad credentials")
}

func TestClient_SessionStoreReused(t *testing.T) {
	t.Parallel()
	f, srv := newFake(t)
	store := &memSessions{}

	first := newTestClient(t, srv.URL, WithSessionStore(store))
	_, err := first.Endpoint(context.Background(), 345)
	require.NoError(t, err)

	saved, _ := store.LoadCookie(context.Background(), first.Server())
	assert.Equal(t, "_yapi_token=tok-1; _yapi_uid=7", saved)

	second := newTestClient(t, srv.URL, WithSessionStore(store))
	_, err = second.Endpoint(context.Background(), 345)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.logins.Load())
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	f, srv := newFake(t)
	f.failFirst.Store(2)
	c := newTestClient(t, srv.URL, WithCookie("_yapi_token=tok-1"))

	_, err := c.Endpoint(context.Background(), 345)
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.logins.Load())
}

func TestClient_NetworkError(t *testing.T) {
	t.Parallel()
	c, err := NewClient(Settings{
		Server:      "http://127.0.0.1:1",
		HTTPTimeout: 200 * time.Millisecond,
		MaxRetries:  2,
		BackoffBase: time.Millisecond,
	}, WithCookie("x=y"))
	require.NoError(t, err)

	_, err = c.Endpoint(context.Background(), 345)
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, NetworkError, ae.Code)
}

func TestClient_Project(t *testing.T) {
	t.Parallel()
	_, srv := newFake(t)
	c := newTestClient(t, srv.URL, WithCookie("_yapi_token=tok-1"))

	p, err := c.Project(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "billing-service", p.Name)
}

func TestNewClient_InvalidServer(t *testing.T) {
	t.Parallel()
	for _, server := range []string{"", "ftp://example.com", "not a url"} {
		_, err := NewClient(Settings{Server: server})
		var ae *APIError
		require.True(t, errors.As(err, &ae), "server %q", server)
		assert.Equal(t, InputError, ae.Code)
	}
}
