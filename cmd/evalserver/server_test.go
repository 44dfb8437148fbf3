package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/crab-eval/internal/app"
	"github.com/bobmcallan/crab-eval/internal/server"
)

const testDataset = `[
  {"id":"r1","repo":"owner/name","pr_number":1,"merge_commit_sha":"abc",
   "comments":[{"body":"Fix the off by one error here","file":"src/Main.java","from":10,"to":12,"paraphrases":["There is an off-by-one bug here"]}],
   "metadata":{"build_system":"maven","successful":true,"reason_for_failure":""}}
]`

// newTestServer wires a real App against a temp results/dataset directory
// and returns an httptest.Server serving the production mux.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	datasetPath := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(datasetPath, []byte(testDataset), 0o644))

	t.Setenv("RESULTS_DIR", filepath.Join(dir, "results"))
	t.Setenv("DATA_PATH", dir)
	t.Setenv("DATASET_PATH", datasetPath)
	t.Setenv("ARCHIVES_ROOT", filepath.Join(dir, "archives"))
	t.Setenv("MOCK_BUILD_HANDLER", "true")
	t.Setenv("MAX_WORKERS", "2")

	a, err := app.NewApp("")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := server.NewServer(a)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func multipartJSONBody(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHelloEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/hello")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["message"])
}

func TestSubmitComment_RejectsNonJSONExtension(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartJSONBody(t, "submission.txt", []byte(`{}`))
	resp, err := http.Post(ts.URL+"/answers/submit/comment", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitComment_AcceptAndCompleteEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	submission := []byte(`{"r1":{"path":"src/Main.java","line_from":10,"line_to":12,"body":"fix typo"}}`)
	body, ct := multipartJSONBody(t, "submission.json", submission)

	resp, err := http.Post(ts.URL+"/answers/submit/comment", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accepted struct {
		ID        string `json:"id"`
		StatusURL string `json:"status_url"`
		HelpMsg   string `json:"help_msg"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NotEmpty(t, accepted.ID)
	assert.Equal(t, "/answers/status/"+accepted.ID, accepted.StatusURL)

	var final map[string]any
	require.Eventually(t, func() bool {
		statusResp, err := http.Get(ts.URL + accepted.StatusURL)
		if err != nil {
			return false
		}
		defer statusResp.Body.Close()
		var body map[string]any
		if json.NewDecoder(statusResp.Body).Decode(&body) != nil {
			return false
		}
		if body["status"] == "complete" {
			final = body
			return true
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.NotNil(t, final)
	assert.Equal(t, "comment", final["type"])
	results, ok := final["results"].(map[string]any)
	require.True(t, ok)
	r1, ok := results["r1"].(map[string]any)
	require.True(t, ok)
	assert.True(t, r1["correct_file"].(bool))
}

func TestStatus_UnknownIDReturns404(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/answers/status/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDatasetDownload_RejectsUnknownName(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/datasets/download/not_a_real_dataset")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
