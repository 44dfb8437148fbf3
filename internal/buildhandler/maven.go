package buildhandler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const mavenImage = "crab-maven"

// mavenBaseCmd runs Maven non-interactively with colors off and download
// logging suppressed; -q is deliberately not used since it would also
// suppress Surefire's "Tests run:" summary that TestRepo parses.
var mavenBaseCmd = []string{"mvn", "-B", "-Dstyle.color=never", "-Dartifact.download.skip=true"}

func mavenCmd(goals ...string) []string {
	return append(append([]string{}, mavenBaseCmd...), goals...)
}

// MavenHandler drives a Maven repository inside a crab-maven container.
type MavenHandler struct {
	repoDir     string
	runtime     *Runtime
	containerID string
}

// NewMavenHandler returns a handler over repoDir, an already-extracted
// Maven project (containing pom.xml).
func NewMavenHandler(repoDir string, runtime *Runtime) *MavenHandler {
	return &MavenHandler{repoDir: repoDir, runtime: runtime}
}

func (h *MavenHandler) System() BuildSystem { return BuildSystemMaven }
func (h *MavenHandler) RepoDir() string     { return h.repoDir }

func (h *MavenHandler) Enter(ctx context.Context) error {
	if h.containerID != "" {
		return fmt.Errorf("buildhandler: maven handler already entered")
	}
	id, err := h.runtime.StartKeepAlive(ctx, mavenImage, h.repoDir)
	if err != nil {
		return err
	}
	h.containerID = id
	return nil
}

func (h *MavenHandler) Exit(ctx context.Context) error {
	if h.containerID != "" {
		h.runtime.Stop(ctx, h.containerID)
		h.containerID = ""
	}
	return os.RemoveAll(h.repoDir)
}

func (h *MavenHandler) InjectChanges(changes map[string]string) error {
	return injectChanges(h.repoDir, changes)
}

func (h *MavenHandler) CompileRepo(ctx context.Context) (string, error) {
	res, err := h.runtime.Exec(ctx, h.containerID, mavenCmd("clean", "compile"))
	cleaned := cleanOutput(res.Output)
	if err != nil {
		return cleaned, &HandlerException{Stage: "compilation", Reason: "mvn compile failed", Output: cleaned, Err: err}
	}
	if res.ExitCode != 0 {
		return cleaned, &HandlerException{Stage: "compilation", Reason: fmt.Sprintf("mvn compile exited %d", res.ExitCode), Output: cleaned}
	}
	return cleaned, nil
}

func (h *MavenHandler) TestRepo(ctx context.Context) (TestSummary, error) {
	res, err := h.runtime.Exec(ctx, h.containerID, mavenCmd("test"))
	cleaned := cleanOutput(res.Output)
	if err != nil {
		return TestSummary{}, &HandlerException{Stage: "test", Reason: "mvn test failed", Output: cleaned, Err: err}
	}

	summary, parseErr := parseMavenTestSummary(cleaned)
	if parseErr != nil {
		return TestSummary{}, &HandlerException{Stage: "test", Reason: "no test results", Output: cleaned, Err: parseErr}
	}
	return summary, nil
}

func (h *MavenHandler) CoverageForFile(ctx context.Context, sourcePath string) ([]CoverageHit, error) {
	pomPath := filepath.Join(h.repoDir, "pom.xml")
	err := ensureCoverageGenerated(ctx, pomPath, hasJacocoMaven, injectJacocoMaven, func(ctx context.Context) error {
		res, execErr := h.runtime.Exec(ctx, h.containerID, mavenCmd("jacoco:report-aggregate"))
		if execErr != nil {
			return execErr
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("mvn jacoco:report-aggregate exited %d", res.ExitCode)
		}
		return nil
	})
	if err != nil {
		return nil, &HandlerException{Stage: "coverage", Reason: "jacoco report generation failed", Err: err}
	}

	return coverageForFile(h.repoDir, BuildSystemMaven, sourcePath)
}
