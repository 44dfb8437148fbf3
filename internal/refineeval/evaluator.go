// Package refineeval implements the code-refinement evaluator, component
// H: for each submitted id it resolves the reference archive, injects the
// submitted files into a sandboxed checkout, then compiles and tests the
// project inside an isolated build-handler container, emitting a per-id
// success/failure record.
package refineeval

import (
	"context"
	"math"
	"time"

	"github.com/bobmcallan/crab-eval/internal/buildhandler"
	"github.com/bobmcallan/crab-eval/internal/common"
	"github.com/bobmcallan/crab-eval/internal/dataset"
	"github.com/bobmcallan/crab-eval/internal/models"
)

// buildTimeout is the one-hour soft ceiling per compile/test invocation.
// A timeout is recorded as a per-id error; it never kills the worker.
const buildTimeout = time.Hour

// stepsPerID is the fixed number of progress increments the evaluator
// reports for every id: archive resolution, injection, compilation, test.
const stepsPerID = 4

// Result is the per-id results entry for a refinement submission.
type Result struct {
	ChangesInjection       *bool  `json:"changes_injection,omitempty"`
	ChangesInjectionErrMsg string `json:"changes_injection_error_msg,omitempty"`
	Compilation            *bool  `json:"compilation,omitempty"`
	CompilationErrMsg      string `json:"compilation_error_msg,omitempty"`
	Test                   *bool  `json:"test,omitempty"`
	TestErrMsg             string `json:"test_error_msg,omitempty"`
}

// Evaluator resolves reference archives and drives builds inside
// isolated build-handler containers.
type Evaluator struct {
	refs         *dataset.LazyStore
	resolver     *buildhandler.Resolver
	archivesRoot string
	logger       *common.Logger
}

// New returns an Evaluator backed by refs, resolving archives under
// archivesRoot via resolver.
func New(refs *dataset.LazyStore, resolver *buildhandler.Resolver, archivesRoot string, logger *common.Logger) *Evaluator {
	return &Evaluator{refs: refs, resolver: resolver, archivesRoot: archivesRoot, logger: logger}
}

// Task adapts Evaluate to the evaljob.Task signature.
func (e *Evaluator) Task() func(payload any, percentCB func(int), completeCB func(any)) {
	return func(payload any, percentCB func(int), completeCB func(any)) {
		submission, _ := payload.(models.RefinementSubmission)
		results := e.Evaluate(context.Background(), submission, percentCB)
		completeCB(results)
	}
}

// Evaluate drives every submitted id through archive resolution,
// injection, compilation, and test, in submission order. Progress is
// reported as current/totalSteps*100 where totalSteps = n*4, with
// current bumped by one for each of the four steps an id runs, a failing
// injection or build step included; steps skipped after a failure are
// not counted (§4.H step 1).
func (e *Evaluator) Evaluate(ctx context.Context, submission models.RefinementSubmission, percentCB func(int)) map[string]Result {
	results := make(map[string]Result)
	n := len(submission.Entries)
	totalSteps := n * stepsPerID

	report := func(current int) {
		if percentCB != nil && totalSteps > 0 {
			percentCB(int(math.Round(float64(current) / float64(totalSteps) * 100)))
		}
	}

	for i, entry := range submission.Entries {
		current := i * stepsPerID

		ref, ok := e.refs.Lookup(entry.ID)
		if !ok {
			if e.logger != nil {
				e.logger.Warn().Str("id", entry.ID).Msg("refinement evaluator: unknown reference id, skipping")
			}
			continue
		}

		handler, err := e.resolver.Resolve(e.archivesRoot, ref.ArchiveName(models.ArchiveStateMerged))
		if err != nil {
			if e.logger != nil {
				e.logger.Warn().Err(err).Str("id", entry.ID).Msg("refinement evaluator: could not resolve build handler, skipping")
			}
			continue
		}
		current++
		report(current)

		if err := handler.InjectChanges(entry.Changes); err != nil {
			f := false
			results[entry.ID] = Result{ChangesInjection: &f, ChangesInjectionErrMsg: err.Error()}
			handler.Exit(ctx)
			current++
			report(current)
			continue
		}
		current++
		report(current)

		res := Result{}
		runErr := buildhandler.WithHandler(ctx, handler, func(h buildhandler.BuildHandler) error {
			type step struct {
				name string
				run  func(context.Context) error
			}
			steps := []step{
				{"compilation", func(c context.Context) error {
					_, err := h.CompileRepo(c)
					return err
				}},
				{"test", func(c context.Context) error {
					_, err := h.TestRepo(c)
					return err
				}},
			}

			for _, s := range steps {
				stepCtx, cancel := context.WithTimeout(ctx, buildTimeout)
				err := s.run(stepCtx)
				cancel()

				ok := err == nil
				setStepResult(&res, s.name, ok, err)
				current++
				report(current)
				if !ok {
					return nil
				}
			}
			return nil
		})
		if runErr != nil && e.logger != nil {
			e.logger.Warn().Err(runErr).Str("id", entry.ID).Msg("refinement evaluator: build handler could not be entered")
		}

		results[entry.ID] = res
	}

	return results
}

func setStepResult(res *Result, step string, ok bool, err error) {
	b := ok
	switch step {
	case "compilation":
		res.Compilation = &b
		if !ok {
			res.CompilationErrMsg = err.Error()
		}
	case "test":
		res.Test = &b
		if !ok {
			res.TestErrMsg = err.Error()
		}
	}
}
