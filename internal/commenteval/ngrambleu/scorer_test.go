package ngrambleu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_IdenticalSentencesScoreHigh(t *testing.T) {
	s := New()
	score := s.Score("fix the typo here", "fix the typo here")
	assert.InDelta(t, 100.0, score, 0.01)
}

func TestScore_CompletelyUnrelatedScoresZero(t *testing.T) {
	s := New()
	score := s.Score("completely different words entirely", "fix the typo here")
	assert.Equal(t, 0.0, score)
}

func TestScore_EmptyCandidateScoresZero(t *testing.T) {
	s := New()
	assert.Equal(t, 0.0, s.Score("", "fix the typo"))
}

func TestScore_LongerCandidatePenalized(t *testing.T) {
	s := New()
	shortScore := s.Score("fix typo", "fix typo")
	longScore := s.Score("fix typo here please thanks a lot", "fix typo")
	assert.Greater(t, shortScore, longScore)
}
