package api

import (
	"bytes"
	"encoding/json/v2"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/bus"
	"github.com/librisapp/libris-server/internal/loader"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/ratelimit"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/sse"
	"github.com/librisapp/libris-server/internal/store"
	"github.com/librisapp/libris-server/internal/validation"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := logger.New(logger.Config{Format: "json"})

	st, err := store.New(t.TempDir(), log.Logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})

	eventBus := bus.New(log.Logger)
	t.Cleanup(eventBus.Close)

	counters, err := loader.NewFactory(loader.StrategyBatched, st)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(
		"0000000000000000000000000000000000000000000000000000000000000001",
		time.Hour,
	)
	require.NoError(t, err)

	loginLimiter := ratelimit.New(100, 100)
	t.Cleanup(loginLimiter.Stop)

	validate := validation.New()
	catalog := service.NewCatalogService(st, eventBus, counters, validate, log)
	accounts := service.NewAccountService(st, tokens, loginLimiter, validate, log)
	resolver := auth.NewContextResolver(tokens, st, log)
	sseHandler := sse.NewHandler(eventBus, bus.TopicBookAdded, log.Logger)

	server := NewServer(catalog, accounts, resolver, sseHandler, log.Logger)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

// envelope mirrors the response wrapper for decoding in tests.
type envelope[T any] struct {
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Success bool   `json:"success"`
}

func decode[T any](t *testing.T, raw []byte) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

type bookView struct {
	Title  string `json:"title"`
	Author struct {
		Name string `json:"name"`
		Born *int   `json:"born"`
	} `json:"author"`
}

func registerAndLogin(t *testing.T, ts *httptest.Server, username string) string {
	t.Helper()

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/users", "", map[string]any{
		"username":       username,
		"favorite_genre": "refactoring",
		"password":       "correct horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": username,
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	login := decode[struct {
		Token string `json:"token"`
	}](t, raw)
	require.NotEmpty(t, login.Data.Token)
	return login.Data.Token
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := doJSON(t, ts, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[map[string]string](t, raw).Success)
}

func TestAddBookEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "mluukkai")

	t.Run("anonymous is rejected", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodPost, "/api/v1/books", "", map[string]any{
			"title": "Clean Code", "author": "Robert Martin", "published": 2008, "genres": []string{"refactoring"},
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decode[any](t, raw).Code)
	})

	t.Run("authenticated create", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodPost, "/api/v1/books", token, map[string]any{
			"title": "Clean Code", "author": "Robert Martin", "published": 2008, "genres": []string{"refactoring"},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		book := decode[bookView](t, raw).Data
		assert.Equal(t, "Clean Code", book.Title)
		assert.Equal(t, "Robert Martin", book.Author.Name)
	})

	t.Run("validation failure carries details", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodPost, "/api/v1/books", token, map[string]any{
			"title": "x", "author": "ab", "genres": []string{},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION", decode[any](t, raw).Code)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/books", strings.NewReader("{not json"))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestListEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "mluukkai")

	books := []map[string]any{
		{"title": "Clean Code", "author": "Robert Martin", "published": 2008, "genres": []string{"refactoring"}},
		{"title": "Refactoring", "author": "Martin Fowler", "published": 2018, "genres": []string{"refactoring", "design"}},
		{"title": "NoSQL Distilled", "author": "Martin Fowler", "published": 2012, "genres": []string{"data"}},
	}
	for _, b := range books {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/books", token, b)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	t.Run("authors carry book counts", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodGet, "/api/v1/authors", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		authors := decode[[]struct {
			Name      string `json:"name"`
			BookCount int    `json:"book_count"`
		}](t, raw).Data
		require.Len(t, authors, 2)

		counts := make(map[string]int)
		for _, a := range authors {
			counts[a.Name] = a.BookCount
		}
		assert.Equal(t, 1, counts["Robert Martin"])
		assert.Equal(t, 2, counts["Martin Fowler"])
	})

	t.Run("filtered book listing", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodGet, "/api/v1/books?author=Martin+Fowler&genre=refactoring", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := decode[[]bookView](t, raw).Data
		require.Len(t, result, 1)
		assert.Equal(t, "Refactoring", result[0].Title)
	})
}

func TestEditAuthorEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "mluukkai")

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/books", token, map[string]any{
		"title": "Demons", "author": "Fyodor Dostoevsky", "published": 1872, "genres": []string{"classic"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("sets birth year", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodPatch, "/api/v1/authors/Fyodor%20Dostoevsky", token, map[string]any{
			"set_born_to": 1821,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		author := decode[struct {
			Born *int `json:"born"`
		}](t, raw).Data
		require.NotNil(t, author.Born)
		assert.Equal(t, 1821, *author.Born)
	})

	t.Run("unknown author is a 404", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPatch, "/api/v1/authors/Nobody", token, map[string]any{
			"set_born_to": 1900,
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPatch, "/api/v1/authors/Fyodor%20Dostoevsky", "", map[string]any{
			"set_born_to": 1821,
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestCurrentUserEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "mluukkai")

	t.Run("with token", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodGet, "/api/v1/users/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		user := decode[struct {
			Username     string `json:"username"`
			PasswordHash string `json:"password_hash"`
		}](t, raw).Data
		assert.Equal(t, "mluukkai", user.Username)
		assert.Empty(t, user.PasswordHash)
	})

	t.Run("without token resolves to nobody", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodGet, "/api/v1/users/me", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		env := decode[*struct {
			Username string `json:"username"`
		}](t, raw)
		assert.True(t, env.Success)
		assert.Nil(t, env.Data)
	})

	t.Run("garbage token degrades to nobody", func(t *testing.T) {
		resp, raw := doJSON(t, ts, http.MethodGet, "/api/v1/users/me", "v4.local.garbage", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Nil(t, decode[*struct{}](t, raw).Data)
	})
}

func TestLoginEndpoint_GenericFailure(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "mluukkai")

	_, unknownRaw := doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "nobody", "password": "correct horse",
	})
	_, wrongRaw := doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "mluukkai", "password": "wrong password",
	})

	unknown := decode[any](t, unknownRaw)
	wrong := decode[any](t, wrongRaw)
	assert.Equal(t, unknown.Error, wrong.Error)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", wrong.Code)
}

func TestBookEventsStream(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts, "mluukkai")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/events/books", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan string, 8)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				events <- string(buf[:n])
			}
			if err != nil {
				close(events)
				return
			}
		}
	}()

	// The connection handshake arrives first.
	waitForChunk(t, events, "event: connected")

	addResp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/books", token, map[string]any{
		"title": "Demons", "author": "Fyodor Dostoevsky", "published": 1872, "genres": []string{"classic"},
	})
	require.Equal(t, http.StatusCreated, addResp.StatusCode)

	waitForChunk(t, events, "event: book-added")
}

func waitForChunk(t *testing.T, events <-chan string, want string) {
	t.Helper()

	var seen strings.Builder
	deadline := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-events:
			if !ok {
				t.Fatalf("stream closed before %q arrived; saw: %s", want, seen.String())
			}
			seen.WriteString(chunk)
			if strings.Contains(seen.String(), want) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q; saw: %s", want, seen.String())
		}
	}
}
