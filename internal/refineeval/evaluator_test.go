package refineeval

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/crab-eval/internal/buildhandler"
	"github.com/bobmcallan/crab-eval/internal/dataset"
	"github.com/bobmcallan/crab-eval/internal/models"
)

const refDataset = `[
  {"id":"r1","repo":"owner/name","pr_number":7,"merge_commit_sha":"abc",
   "comments":[{"body":"x","file":"f.java","from":1,"to":1,"paraphrases":[]}],
   "metadata":{"build_system":"maven","successful":true,"reason_for_failure":""}}
]`

func writeMinimalMavenArchive(t *testing.T, root, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))

	f, err := os.Create(filepath.Join(root, name))
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	content := []byte("<project></project>")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "pom.xml", Size: int64(len(content)), Mode: 0o644}))
	_, err = tw.Write(content)
	require.NoError(t, err)
}

func newTestEvaluator(t *testing.T) (*Evaluator, string) {
	t.Helper()
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(datasetPath, []byte(refDataset), 0o644))

	archivesRoot := filepath.Join(dir, "archives")
	writeMinimalMavenArchive(t, archivesRoot, "owner_name_7_merged.tar.gz")

	refs := dataset.NewLazy(datasetPath, false, nil)
	resolver := buildhandler.NewResolver(nil, true) // mock mode: never touches Docker
	return New(refs, resolver, archivesRoot, nil), archivesRoot
}

func TestEvaluate_KnownIDCompilesAndTestsSuccessfully(t *testing.T) {
	e, _ := newTestEvaluator(t)

	submission := models.RefinementSubmission{
		Entries: []models.RefinementEntry{
			{ID: "r1", Changes: map[string]string{"src/Main.java": "class Main {}"}},
		},
	}

	var percents []int
	results := e.Evaluate(context.Background(), submission, func(p int) { percents = append(percents, p) })

	require.Contains(t, results, "r1")
	res := results["r1"]
	require.NotNil(t, res.Compilation)
	assert.True(t, *res.Compilation)
	require.NotNil(t, res.Test)
	assert.True(t, *res.Test)
	assert.Equal(t, []int{25, 50, 75, 100}, percents)
}

func TestEvaluate_UnknownIDIsSkipped(t *testing.T) {
	e, _ := newTestEvaluator(t)

	submission := models.RefinementSubmission{
		Entries: []models.RefinementEntry{
			{ID: "does-not-exist", Changes: map[string]string{"a.java": "x"}},
		},
	}

	results := e.Evaluate(context.Background(), submission, nil)
	assert.Empty(t, results)
}

func TestEvaluate_InjectionEscapeRecordsFailureWithoutAbortingBatch(t *testing.T) {
	e, _ := newTestEvaluator(t)

	submission := models.RefinementSubmission{
		Entries: []models.RefinementEntry{
			{ID: "r1", Changes: map[string]string{"../evil.txt": "pwned"}},
		},
	}

	results := e.Evaluate(context.Background(), submission, nil)
	require.Contains(t, results, "r1")
	res := results["r1"]
	require.NotNil(t, res.ChangesInjection)
	assert.False(t, *res.ChangesInjection)
	assert.NotEmpty(t, res.ChangesInjectionErrMsg)
	assert.Nil(t, res.Compilation)
}

func TestEvaluate_UnresolvableArchiveIsSkipped(t *testing.T) {
	e, archivesRoot := newTestEvaluator(t)
	_ = os.Remove(filepath.Join(archivesRoot, "owner_name_7_merged.tar.gz"))

	submission := models.RefinementSubmission{
		Entries: []models.RefinementEntry{
			{ID: "r1", Changes: map[string]string{"a.java": "x"}},
		},
	}

	results := e.Evaluate(context.Background(), submission, nil)
	assert.Empty(t, results)
}
