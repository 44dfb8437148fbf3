// Package buildhandler implements component I: per-build-system
// (Maven, Gradle) container lifecycle, command execution, output
// parsing, and JaCoCo coverage-plugin injection, grounded on the
// docker/docker client wrapper pattern used elsewhere in the pack.
package buildhandler

import "context"

// BuildSystem tags the concrete variant a BuildHandler was resolved to.
type BuildSystem string

const (
	BuildSystemMaven  BuildSystem = "maven"
	BuildSystemGradle BuildSystem = "gradle"
	BuildSystemMock   BuildSystem = "mock"
)

// TestSummary is the parsed outcome of a test run.
type TestSummary struct {
	Total  int
	Failed int
	Passed int
}

// CoverageHit is one (report, percentage) pair returned by a per-file
// coverage lookup; a file may be covered by more than one report.
type CoverageHit struct {
	Report   string
	Coverage float64
}

// BuildHandler is the common trait every concrete variant implements.
// A handler owns exactly one extracted repository directory and, while
// entered, exactly one running container.
type BuildHandler interface {
	// System reports which concrete variant this handler is.
	System() BuildSystem

	// RepoDir is the absolute path to the extracted repository root.
	RepoDir() string

	// Enter starts the backing container for this handler's repo. The
	// Maven and Gradle handlers reject a second Enter without an
	// intervening Exit; MockHandler accepts it.
	Enter(ctx context.Context) error

	// Exit stops and removes the backing container and recursively
	// deletes the extracted repository directory. Safe to call multiple
	// times; only the first call has effect.
	Exit(ctx context.Context) error

	// InjectChanges overwrites filename -> content pairs inside the
	// repo, rejecting any path that would escape the repo root.
	InjectChanges(changes map[string]string) error

	// CompileRepo runs the build system's compile command inside the
	// container and returns the cleaned combined output.
	CompileRepo(ctx context.Context) (string, error)

	// TestRepo runs the build system's test command inside the
	// container, then extracts the test summary from the run's output
	// or report files.
	TestRepo(ctx context.Context) (TestSummary, error)

	// CoverageForFile returns every coverage report that mentions
	// sourcePath's fully-qualified class, after ensuring the coverage
	// plugin has been injected and coverage has been generated.
	CoverageForFile(ctx context.Context, sourcePath string) ([]CoverageHit, error)
}

// WithHandler opens a scoped acquisition of h: it calls Enter, invokes
// fn, and guarantees Exit runs on every path (including a panic
// propagating out of fn), matching the "ensures container teardown on
// all exit paths" requirement for the refinement evaluator's per-id
// compile/test steps.
func WithHandler(ctx context.Context, h BuildHandler, fn func(BuildHandler) error) error {
	if err := h.Enter(ctx); err != nil {
		h.Exit(ctx)
		return err
	}
	defer h.Exit(ctx)
	return fn(h)
}
