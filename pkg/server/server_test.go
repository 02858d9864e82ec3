package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jingkaihe/skillet/pkg/config"
	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/service"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHistory struct {
	listFunc  func(ctx context.Context, opts history.ListOptions) ([]history.Entry, error)
	statsFunc func(ctx context.Context) (history.Stats, error)
}

func (m *mockHistory) List(ctx context.Context, opts history.ListOptions) ([]history.Entry, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, opts)
	}
	return []history.Entry{}, nil
}

func (m *mockHistory) Stats(ctx context.Context) (history.Stats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return history.Stats{}, nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	builtin, err := skills.Builtin()
	require.NoError(t, err)

	svc := service.New(context.Background(), skills.NewStaticCatalog(builtin))
	s, err := NewServer(config.ServerConfig{Host: "localhost", Port: 8080}, svc, opts...)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestNewServerValidation(t *testing.T) {
	builtin, err := skills.Builtin()
	require.NoError(t, err)
	svc := service.New(context.Background(), skills.NewStaticCatalog(builtin))

	_, err = NewServer(config.ServerConfig{Host: "", Port: 8080}, svc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host cannot be empty")

	_, err = NewServer(config.ServerConfig{Host: "localhost", Port: 70000}, svc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be between 1 and 65535")

	_, err = NewServer(config.ServerConfig{Host: "localhost", Port: 8080}, nil)
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(t), "GET", "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	resp := decode[map[string]any](t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.EqualValues(t, 3, resp["skills"])
}

func TestListSkills(t *testing.T) {
	w := do(t, newTestServer(t), "GET", "/api/skills", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Skills []service.Summary `json:"skills"`
		Total  int               `json:"total"`
	}](t, w)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Skills, 3)
	assert.Equal(t, "code-explainer", resp.Skills[0].Name)
	assert.Equal(t, "debug-helper", resp.Skills[1].Name)
	assert.Equal(t, "performance-guide", resp.Skills[2].Name)
}

func TestGetSkill(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "GET", "/api/skills/code-explainer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SkillResponse](t, w)
	assert.Equal(t, "code-explainer", resp.Name)
	assert.Contains(t, resp.Triggers, "how does * work")
	assert.Equal(t, "What It Does", resp.Template.Sections[0].Name)
	assert.Contains(t, resp.Content, "# Code Explainer")

	w = do(t, s, "GET", "/api/skills/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	errResp := decode[map[string]any](t, w)
	assert.Equal(t, false, errResp["success"])
	assert.Equal(t, "skill not found", errResp["error"])
}

func TestSelect(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "POST", "/api/select", SelectRequest{Text: "How does this authentication middleware work?", All: true})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SelectResponse](t, w)
	assert.True(t, resp.Selected)
	require.NotNil(t, resp.Skill)
	assert.Equal(t, "code-explainer", resp.Skill.Name)
	assert.Contains(t, resp.Skill.Description, "Explain code functionality")
	assert.GreaterOrEqual(t, resp.Score, 3.0)
	assert.NotEmpty(t, resp.Reasons)
	require.NotEmpty(t, resp.Candidates)
	assert.Equal(t, "code-explainer", resp.Candidates[0].Name)
}

func TestSelectNothing(t *testing.T) {
	w := do(t, newTestServer(t), "POST", "/api/select", SelectRequest{Text: "   "})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SelectResponse](t, w)
	assert.False(t, resp.Selected)
	assert.Nil(t, resp.Skill)
	assert.Empty(t, resp.Candidates)
}

func TestSelectBadBody(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "POST", "/api/select", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, "POST", "/api/select", `{"text":"x","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRender(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "POST", "/api/skills/debug-helper/render", RenderRequest{
		Title:       "Login crash",
		Sections:    map[string]string{"root cause": "nil session", "Fix": "check the session"},
		Placeholder: "TBD",
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[RenderResponse](t, w)
	assert.Equal(t, "debug-helper", resp.Skill)
	assert.Contains(t, resp.Markdown, "## Login crash\n")
	assert.Contains(t, resp.Markdown, "### Symptom\n\nTBD\n")
	assert.Contains(t, resp.Markdown, "### Root Cause\n\nnil session\n")
	assert.Less(t,
		bytes.Index([]byte(resp.Markdown), []byte("### Symptom")),
		bytes.Index([]byte(resp.Markdown), []byte("### Prevention")),
	)

	w = do(t, s, "POST", "/api/skills/missing/render", RenderRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPluginSkillRoutes(t *testing.T) {
	builtin, err := skills.Builtin()
	require.NoError(t, err)

	reviewer := *builtin["debug-helper"]
	reviewer.Name = "acme/tools/reviewer"
	reviewer.Source = skills.SourcePlugin
	builtin[reviewer.Name] = &reviewer

	svc := service.New(context.Background(), skills.NewStaticCatalog(builtin))
	s, err := NewServer(config.ServerConfig{Host: "localhost", Port: 8080}, svc)
	require.NoError(t, err)

	w := do(t, s, "GET", "/api/skills/acme/tools/reviewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme/tools/reviewer", decode[SkillResponse](t, w).Name)

	w = do(t, s, "GET", "/api/skills/acme%2Ftools%2Freviewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme/tools/reviewer", decode[SkillResponse](t, w).Name)

	w = do(t, s, "POST", "/api/skills/acme/tools/reviewer/render", RenderRequest{Title: "Crash"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RenderResponse](t, w)
	assert.Equal(t, "acme/tools/reviewer", resp.Skill)
	assert.Contains(t, resp.Markdown, "## Crash\n")

	w = do(t, s, "POST", "/api/skills/acme/tools/missing/render", RenderRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreflight(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/select", "/api/skills/debug-helper/render", "/api/skills", "/api/skills/code-explainer"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST", path)
		assert.Empty(t, w.Body.String(), path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := do(t, newTestServer(t), "DELETE", "/api/skills/code-explainer", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/api/history", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/api/history/stats", nil).Code)
}

func TestHistory(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	var gotOpts history.ListOptions
	h := &mockHistory{
		listFunc: func(_ context.Context, opts history.ListOptions) ([]history.Entry, error) {
			gotOpts = opts
			return []history.Entry{{ID: "1", Text: "explain x", Skill: "code-explainer", Score: 3, CreatedAt: now}}, nil
		},
		statsFunc: func(context.Context) (history.Stats, error) {
			return history.Stats{Total: 4, Unmatched: 1, Skills: []history.SkillStat{{Skill: "code-explainer", Count: 3, AvgScore: 3.5, LastSelected: now}}}, nil
		},
	}
	s := newTestServer(t, WithHistory(h))

	w := do(t, s, "GET", "/api/history?limit=5&skill=code-explainer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, history.ListOptions{Limit: 5, Skill: "code-explainer"}, gotOpts)
	list := decode[struct {
		Entries []history.Entry `json:"entries"`
		Total   int             `json:"total"`
	}](t, w)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "code-explainer", list.Entries[0].Skill)

	w = do(t, s, "GET", "/api/history/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[history.Stats](t, w)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Skills[0].Count)

	assert.Equal(t, http.StatusBadRequest, do(t, s, "GET", "/api/history?limit=abc", nil).Code)
}

func TestHistoryError(t *testing.T) {
	h := &mockHistory{
		statsFunc: func(context.Context) (history.Stats, error) {
			return history.Stats{}, errors.New("database is locked")
		},
	}
	w := do(t, newTestServer(t, WithHistory(h)), "GET", "/api/history/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database is locked")
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t)
	s.config.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, s.Stop())
}
