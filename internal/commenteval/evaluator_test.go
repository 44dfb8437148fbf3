package commenteval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/crab-eval/internal/commenteval/ngrambleu"
	"github.com/bobmcallan/crab-eval/internal/dataset"
	"github.com/bobmcallan/crab-eval/internal/models"
)

const evalDataset = `[
  {"id":"r1","repo":"owner/name","pr_number":1,"merge_commit_sha":"abc",
   "comments":[{"body":"Fix the off by one error here","file":"src/Main.java","from":10,"to":12,"paraphrases":["There is an off-by-one bug here"]}],
   "metadata":{"build_system":"maven","successful":true,"reason_for_failure":""}}
]`

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(evalDataset), 0o644))

	refs := dataset.NewLazy(path, false, nil)
	return New(refs, ngrambleu.New(), nil)
}

func TestEvaluate_KnownIDExactMatchScoresMaxBLEU(t *testing.T) {
	e := newTestEvaluator(t)

	submission := models.CommentSubmission{
		Entries: []models.CommentEntry{
			{ID: "r1", Comment: models.ProposedComment{
				Path: "src/Main.java",
				Body: "Fix the off by one error here",
			}},
		},
	}

	var percents []int
	results := e.Evaluate(submission, func(p int) { percents = append(percents, p) })

	require.Contains(t, results, "r1")
	result := results["r1"]
	assert.InDelta(t, 100.0, result.MaxBLEUScore, 0.01)
	assert.True(t, result.CorrectFile)
	assert.Equal(t, "NA", result.Distance)
	assert.Equal(t, []int{100}, percents)
}

func TestEvaluate_UnknownIDIsOmittedFromResults(t *testing.T) {
	e := newTestEvaluator(t)

	submission := models.CommentSubmission{
		Entries: []models.CommentEntry{
			{ID: "does-not-exist", Comment: models.ProposedComment{
				Path: "src/Main.java",
				Body: "whatever",
			}},
		},
	}

	results := e.Evaluate(submission, nil)
	assert.Empty(t, results)
}

func TestEvaluate_WrongFileReportsDistanceNA(t *testing.T) {
	e := newTestEvaluator(t)

	submission := models.CommentSubmission{
		Entries: []models.CommentEntry{
			{ID: "r1", Comment: models.ProposedComment{
				Path: "src/Other.java",
				Body: "Fix the off by one error here",
			}},
		},
	}

	results := e.Evaluate(submission, nil)
	require.Contains(t, results, "r1")
	result := results["r1"]
	assert.False(t, result.CorrectFile)
	assert.Equal(t, "NA", result.Distance)
}

func TestEvaluate_PercentCallbackCountsSkippedEntries(t *testing.T) {
	e := newTestEvaluator(t)

	submission := models.CommentSubmission{
		Entries: []models.CommentEntry{
			{ID: "missing", Comment: models.ProposedComment{Path: "x", Body: "y"}},
			{ID: "r1", Comment: models.ProposedComment{Path: "src/Main.java", Body: "Fix the off by one error here"}},
		},
	}

	var percents []int
	results := e.Evaluate(submission, func(p int) { percents = append(percents, p) })

	assert.Len(t, results, 1)
	assert.Equal(t, []int{50, 100}, percents)
}
