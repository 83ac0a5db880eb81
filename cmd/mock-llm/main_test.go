package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scorerFixture = `{
  "score": 15,
  "maxScore": 20,
  "status": "partial",
  "strengths": ["asked open-ended discovery questions"],
  "improvements": ["quantify the business impact"],
  "evidence": []
}`

const malformedFixture = `{"note": "not a dimension result"}`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func completionRequest(t *testing.T, srv *server, model string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: "Score the discovery dimension of this transcript."},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleChatCompletions(rec, req)
	return rec
}

func decodeCompletion(t *testing.T, rec *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-scorer.json", scorerFixture)
	writeFixture(t, dir, "mock-fast.json", scorerFixture)

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)
	assert.Len(t, fixtures, 2)
	assert.Equal(t, []string{scorerFixture}, fixtures["mock-scorer"])
}

func TestLoadFixtures_SequentialOrdering(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-scorer.2.json", `{"call": 2}`)
	writeFixture(t, dir, "mock-scorer.1.json", malformedFixture)
	writeFixture(t, dir, "mock-scorer.json", scorerFixture)

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)

	seq := fixtures["mock-scorer"]
	require.Len(t, seq, 3)
	assert.Equal(t, malformedFixture, seq[0])
	assert.Equal(t, `{"call": 2}`, seq[1])
	assert.Equal(t, scorerFixture, seq[2])
}

func TestLoadFixtures_RejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-scorer.json", "not json at all")

	_, err := loadFixtures(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestLoadFixtures_EmptyDir(t *testing.T) {
	_, err := loadFixtures(t.TempDir())
	require.Error(t, err)
}

func TestChatCompletions_ReturnsFixtureContent(t *testing.T) {
	srv := newServer(map[string][]string{"mock-scorer": {scorerFixture}})

	rec := completionRequest(t, srv, "mock-scorer")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCompletion(t, rec)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, scorerFixture, resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, "mock-scorer", resp.Model)
	assert.NotZero(t, resp.Usage.TotalTokens)
}

func TestChatCompletions_StripsMockPrefix(t *testing.T) {
	srv := newServer(map[string][]string{"scorer": {scorerFixture}})

	rec := completionRequest(t, srv, "mock-scorer")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCompletion(t, rec)
	assert.Equal(t, scorerFixture, resp.Choices[0].Message.Content)
}

func TestChatCompletions_SequentialThenRepeat(t *testing.T) {
	srv := newServer(map[string][]string{
		"mock-scorer": {malformedFixture, scorerFixture},
	})

	first := decodeCompletion(t, completionRequest(t, srv, "mock-scorer"))
	assert.Equal(t, malformedFixture, first.Choices[0].Message.Content)

	second := decodeCompletion(t, completionRequest(t, srv, "mock-scorer"))
	assert.Equal(t, scorerFixture, second.Choices[0].Message.Content)

	// Past the end of the sequence the last fixture repeats.
	third := decodeCompletion(t, completionRequest(t, srv, "mock-scorer"))
	assert.Equal(t, scorerFixture, third.Choices[0].Message.Content)
}

func TestChatCompletions_UnknownModel(t *testing.T) {
	srv := newServer(map[string][]string{"mock-scorer": {scorerFixture}})

	rec := completionRequest(t, srv, "gpt-nonexistent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatCompletions_MethodNotAllowed(t *testing.T) {
	srv := newServer(map[string][]string{"mock-scorer": {scorerFixture}})

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	srv.handleChatCompletions(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStats_CountsPerModel(t *testing.T) {
	srv := newServer(map[string][]string{
		"mock-scorer": {scorerFixture},
		"mock-fast":   {scorerFixture},
	})

	completionRequest(t, srv, "mock-scorer")
	completionRequest(t, srv, "mock-scorer")
	completionRequest(t, srv, "mock-fast")

	rec := httptest.NewRecorder()
	srv.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(2), stats.CallsByModel["mock-scorer"])
	assert.Equal(t, int64(1), stats.CallsByModel["mock-fast"])
}

func TestRequests_CapturesPrompts(t *testing.T) {
	srv := newServer(map[string][]string{"mock-scorer": {scorerFixture}})

	completionRequest(t, srv, "mock-scorer")
	completionRequest(t, srv, "mock-scorer")

	rec := httptest.NewRecorder()
	srv.handleRequests(rec, httptest.NewRequest(http.MethodGet, "/requests?model=mock-scorer&call=2", nil))

	var out struct {
		RequestsByModel map[string][]capturedRequest `json:"requests_by_model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	reqs := out.RequestsByModel["mock-scorer"]
	require.Len(t, reqs, 1)
	assert.Equal(t, 2, reqs[0].CallIndex)
	require.Len(t, reqs[0].Messages, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "discovery")
}

func TestModels_ListsFixtureModels(t *testing.T) {
	srv := newServer(map[string][]string{
		"mock-scorer": {scorerFixture},
	})

	rec := httptest.NewRecorder()
	srv.handleModels(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	var out struct {
		Object string `json:"object"`
		Data   []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "list", out.Object)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "mock-scorer", out.Data[0].ID)
}
