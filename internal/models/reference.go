package models

import "strconv"

// Comment is one review comment attached to a reference pull request.
// Only the first comment of a ReferenceEntry drives scoring; Paraphrases
// feed the BLEU candidate set.
type Comment struct {
	Body        string   `json:"body"`
	File        string   `json:"file"`
	From        *int     `json:"from"`
	To          *int     `json:"to"`
	Paraphrases []string `json:"paraphrases"`
}

// ReferenceEntry is one dataset row, immutable after load.
type ReferenceEntry struct {
	ID             string    `json:"id"`
	Repo           string    `json:"repo"`
	PRNumber       int       `json:"pr_number"`
	MergeCommitSHA string    `json:"merge_commit_sha"`
	Comments       []Comment `json:"comments"`
	Metadata       Metadata  `json:"metadata"`
}

// ArchiveState names which snapshot of a pull request's repository an
// archive holds.
type ArchiveState string

const (
	ArchiveStateBase   ArchiveState = "base"
	ArchiveStateMerged ArchiveState = "merged"
)

// Metadata carries each dataset row's bookkeeping fields; ReasonForFailure
// is consulted by the reference-store loader to decide whether an
// in-progress row should be dropped.
type Metadata struct {
	BuildSystem      string `json:"build_system"`
	Successful       bool   `json:"successful"`
	ReasonForFailure string `json:"reason_for_failure"`
}

// StillBeingProcessedReason is the sentinel ReasonForFailure value that
// marks a dataset row as not yet finished being built.
const StillBeingProcessedReason = "Was still being processed"

// ArchiveName returns the tarball filename for this entry at the given
// archive state: "<repo with / replaced by _>_<pr_number>_<state>.tar.gz".
func (e ReferenceEntry) ArchiveName(state ArchiveState) string {
	repo := e.Repo
	out := make([]byte, 0, len(repo))
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			out = append(out, '_')
		} else {
			out = append(out, repo[i])
		}
	}
	return string(out) + "_" + strconv.Itoa(e.PRNumber) + "_" + string(state) + ".tar.gz"
}
