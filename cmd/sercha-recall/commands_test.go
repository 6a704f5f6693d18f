package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

const exampleProfile = "../../data/profile.example.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// fakeProviders serves the local embedding and Ollama generation APIs
func fakeProviders(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input json.RawMessage `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var batch []string
		if err := json.Unmarshal(req.Input, &batch); err != nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 0, 0}})
			return
		}
		vectors := make([][]float32, len(batch))
		for i := range batch {
			vectors[i] = []float32{1, 0, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	})
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"Built the streaming pipeline [#1].","done":true}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func useFakeProviders(t *testing.T) {
	t.Helper()
	server := fakeProviders(t)
	t.Setenv("RECALL_PROFILE_PATH", exampleProfile)
	t.Setenv("RECALL_EMBEDDING_PROVIDER", "local")
	t.Setenv("RECALL_EMBEDDING_BASE_URL", server.URL)
	t.Setenv("RECALL_LLM_PROVIDER", "ollama")
	t.Setenv("RECALL_LLM_BASE_URL", server.URL)
	t.Setenv("RECALL_LOG_LEVEL", "error")
	t.Setenv("RECALL_REDIS_URL", "")
	t.Setenv("RECALL_POSTGRES_URL", "")
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "ask", "index", "version", "--config"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sercha-recall dev")
}

func TestAskCommand_RequiresQuestion(t *testing.T) {
	_, err := execute(t, "ask")
	assert.Error(t, err)
}

func TestCommands_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "index", "--config", "/nonexistent/recall.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestCommands_MissingProfile(t *testing.T) {
	t.Setenv("RECALL_PROFILE_PATH", "/nonexistent/profile.yaml")
	_, err := execute(t, "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading profile")
}

func TestIndexCommand(t *testing.T) {
	useFakeProviders(t)

	out, err := execute(t, "index")
	require.NoError(t, err)

	var status domain.IndexStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Built)
	assert.Positive(t, status.Chunks)
	assert.Equal(t, 3, status.Dimensions)
}

func TestIndexCommand_EmbeddingNotConfigured(t *testing.T) {
	t.Setenv("RECALL_PROFILE_PATH", exampleProfile)
	t.Setenv("RECALL_EMBEDDING_PROVIDER", "openai")
	t.Setenv("RECALL_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RECALL_LOG_LEVEL", "error")

	_, err := execute(t, "index")
	assert.Error(t, err)
}

func TestAskCommand(t *testing.T) {
	useFakeProviders(t)

	out, err := execute(t, "ask", "What", "streaming", "work", "was", "done?")
	require.NoError(t, err)

	var result domain.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "Built the streaming pipeline [#1].", result.Answer)
	assert.False(t, result.Meta.Cached)
	assert.NotEmpty(t, result.Sources)
}

func TestAskCommand_InvalidQuery(t *testing.T) {
	useFakeProviders(t)

	_, err := execute(t, "ask", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(domain.CodeInvalidInput))
}
