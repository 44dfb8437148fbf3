package buildhandler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const gradleImage = "crab-gradle"

// gradleBaseCmd uses the container's gradle distribution with plain
// console output; extracted snapshots are not guaranteed to ship a
// working wrapper.
var gradleBaseCmd = []string{"gradle", "--no-daemon", "--console=plain"}

func gradleCmd(tasks ...string) []string {
	return append(append([]string{}, gradleBaseCmd...), tasks...)
}

// GradleHandler drives a Gradle repository inside a crab-gradle container.
type GradleHandler struct {
	repoDir     string
	runtime     *Runtime
	containerID string
}

// NewGradleHandler returns a handler over repoDir, an already-extracted
// Gradle project (containing build.gradle).
func NewGradleHandler(repoDir string, runtime *Runtime) *GradleHandler {
	return &GradleHandler{repoDir: repoDir, runtime: runtime}
}

func (h *GradleHandler) System() BuildSystem { return BuildSystemGradle }
func (h *GradleHandler) RepoDir() string     { return h.repoDir }

func (h *GradleHandler) Enter(ctx context.Context) error {
	if h.containerID != "" {
		return fmt.Errorf("buildhandler: gradle handler already entered")
	}
	id, err := h.runtime.StartKeepAlive(ctx, gradleImage, h.repoDir)
	if err != nil {
		return err
	}
	h.containerID = id
	return nil
}

func (h *GradleHandler) Exit(ctx context.Context) error {
	if h.containerID != "" {
		h.runtime.Stop(ctx, h.containerID)
		h.containerID = ""
	}
	return os.RemoveAll(h.repoDir)
}

func (h *GradleHandler) InjectChanges(changes map[string]string) error {
	return injectChanges(h.repoDir, changes)
}

func (h *GradleHandler) CompileRepo(ctx context.Context) (string, error) {
	res, err := h.runtime.Exec(ctx, h.containerID, gradleCmd("compileJava"))
	cleaned := cleanOutput(res.Output)
	if err != nil {
		return cleaned, &HandlerException{Stage: "compilation", Reason: "gradle compileJava failed", Output: cleaned, Err: err}
	}
	if res.ExitCode != 0 {
		return cleaned, &HandlerException{Stage: "compilation", Reason: fmt.Sprintf("gradle compileJava exited %d", res.ExitCode), Output: cleaned}
	}
	return cleaned, nil
}

func (h *GradleHandler) TestRepo(ctx context.Context) (TestSummary, error) {
	res, err := h.runtime.Exec(ctx, h.containerID, gradleCmd("test"))
	cleaned := cleanOutput(res.Output)
	if err != nil {
		return TestSummary{}, &HandlerException{Stage: "test", Reason: "gradle test failed", Output: cleaned, Err: err}
	}

	reportPath := filepath.Join(h.repoDir, "build", "reports", "tests", "test", "index.html")
	summary, parseErr := parseGradleTestSummary(reportPath)
	if parseErr != nil {
		return TestSummary{}, &HandlerException{Stage: "test", Reason: "no test results", Output: cleaned, Err: parseErr}
	}
	return summary, nil
}

func (h *GradleHandler) CoverageForFile(ctx context.Context, sourcePath string) ([]CoverageHit, error) {
	buildGradlePath := filepath.Join(h.repoDir, "build.gradle")
	err := ensureCoverageGenerated(ctx, buildGradlePath, hasJacocoGradle, injectJacocoGradle, func(ctx context.Context) error {
		res, execErr := h.runtime.Exec(ctx, h.containerID, gradleCmd("jacocoTestReport"))
		if execErr != nil {
			return execErr
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("gradle jacocoTestReport exited %d", res.ExitCode)
		}
		return nil
	})
	if err != nil {
		return nil, &HandlerException{Stage: "coverage", Reason: "jacoco report generation failed", Err: err}
	}

	return coverageForFile(h.repoDir, BuildSystemGradle, sourcePath)
}
