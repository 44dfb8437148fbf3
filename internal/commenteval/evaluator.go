// Package commenteval implements the comment-generation evaluator,
// component G: scores each submitted review comment against the
// reference paraphrases, and reports file/line accuracy.
package commenteval

import (
	"math"

	"github.com/bobmcallan/crab-eval/internal/common"
	"github.com/bobmcallan/crab-eval/internal/dataset"
	"github.com/bobmcallan/crab-eval/internal/models"
)

// SentenceScorer is the seam over the sentence-similarity metric. Score
// returns a 0-100 similarity score between candidate and reference.
type SentenceScorer interface {
	Score(candidate string, reference string) float64
}

// ProposedCommentResult is the per-id results entry, echoed back to the
// client inside the status response.
type ProposedCommentResult struct {
	MaxBLEUScore    float64   `json:"max_bleu_score"`
	BLEUScores      []float64 `json:"bleu_scores"`
	ProposedComment comment   `json:"proposed_comment"`
	CorrectFile     bool      `json:"correct_file"`
	Distance        any       `json:"distance"`
}

type comment struct {
	Path     string `json:"path"`
	LineFrom *int   `json:"line_from"`
	LineTo   *int   `json:"line_to"`
	Body     string `json:"body"`
}

// Evaluator scores comment submissions against the reference dataset.
type Evaluator struct {
	refs   *dataset.LazyStore
	scorer SentenceScorer
	logger *common.Logger
}

// New returns an Evaluator backed by refs and scorer.
func New(refs *dataset.LazyStore, scorer SentenceScorer, logger *common.Logger) *Evaluator {
	return &Evaluator{refs: refs, scorer: scorer, logger: logger}
}

// Task adapts Evaluate to the evaljob.Task signature (payload any,
// percentCB, completeCB).
func (e *Evaluator) Task() func(payload any, percentCB func(int), completeCB func(any)) {
	return func(payload any, percentCB func(int), completeCB func(any)) {
		submission, _ := payload.(models.CommentSubmission)
		results := e.Evaluate(submission, percentCB)
		completeCB(results)
	}
}

// Evaluate scores every entry of submission in input order, invoking
// percentCB after each processed id (including skipped unknown ids, to
// keep progress monotonic against the original submission size).
func (e *Evaluator) Evaluate(submission models.CommentSubmission, percentCB func(int)) map[string]ProposedCommentResult {
	results := make(map[string]ProposedCommentResult)
	total := len(submission.Entries)

	for i, entry := range submission.Entries {
		ref, ok := e.refs.Lookup(entry.ID)
		if !ok {
			if e.logger != nil {
				e.logger.Warn().Str("id", entry.ID).Msg("comment evaluator: unknown reference id, skipping")
			}
			if percentCB != nil && total > 0 {
				percentCB(int(math.Round(float64(i+1) / float64(total) * 100)))
			}
			continue
		}

		results[entry.ID] = e.scoreOne(entry.Comment, ref)

		if percentCB != nil && total > 0 {
			percentCB(int(math.Round(float64(i+1) / float64(total) * 100)))
		}
	}

	return results
}

func (e *Evaluator) scoreOne(submitted models.ProposedComment, ref models.ReferenceEntry) ProposedCommentResult {
	refComment := ref.Comments[0]
	candidates := append([]string{refComment.Body}, refComment.Paraphrases...)

	scores := make([]float64, len(candidates))
	maxScore := 0.0
	for i, candidate := range candidates {
		scores[i] = e.scorer.Score(submitted.Body, candidate)
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}

	correctFile := submitted.Path == refComment.File

	var distance any = "NA"
	if correctFile {
		d, ok := commentDistance(
			lineRange{From: submitted.LineFrom, To: submitted.LineTo},
			lineRange{From: refComment.From, To: refComment.To},
		)
		if ok {
			distance = d
		} else {
			distance = "NA"
		}
	}

	return ProposedCommentResult{
		MaxBLEUScore: maxScore,
		BLEUScores:   scores,
		ProposedComment: comment{
			Path:     submitted.Path,
			LineFrom: submitted.LineFrom,
			LineTo:   submitted.LineTo,
			Body:     submitted.Body,
		},
		CorrectFile: correctFile,
		Distance:    distance,
	}
}
