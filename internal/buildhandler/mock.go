package buildhandler

import (
	"context"
	"os"
	"time"
)

// mockStepDelay is the brief sleep a MockHandler performs in place of an
// actual container round trip, per MOCK_BUILD_HANDLER's testing mode.
const mockStepDelay = 50 * time.Millisecond

// MockHandler is the stub variant returned when MOCK_BUILD_HANDLER is
// enabled: it never talks to Docker and always reports success after a
// short sleep, so the refinement evaluator's wiring can be exercised
// without a container runtime present.
type MockHandler struct {
	repoDir string
}

// NewMockHandler returns a stub handler over repoDir.
func NewMockHandler(repoDir string) *MockHandler {
	return &MockHandler{repoDir: repoDir}
}

func (h *MockHandler) System() BuildSystem { return BuildSystemMock }
func (h *MockHandler) RepoDir() string     { return h.repoDir }

func (h *MockHandler) Enter(ctx context.Context) error {
	time.Sleep(mockStepDelay)
	return nil
}

func (h *MockHandler) Exit(ctx context.Context) error {
	time.Sleep(mockStepDelay)
	return os.RemoveAll(h.repoDir)
}

func (h *MockHandler) InjectChanges(changes map[string]string) error {
	time.Sleep(mockStepDelay)
	return injectChanges(h.repoDir, changes)
}

func (h *MockHandler) CompileRepo(ctx context.Context) (string, error) {
	time.Sleep(mockStepDelay)
	return "", nil
}

func (h *MockHandler) TestRepo(ctx context.Context) (TestSummary, error) {
	time.Sleep(mockStepDelay)
	return TestSummary{Total: 1, Passed: 1}, nil
}

func (h *MockHandler) CoverageForFile(ctx context.Context, sourcePath string) ([]CoverageHit, error) {
	time.Sleep(mockStepDelay)
	return []CoverageHit{{Report: "mock", Coverage: 100}}, nil
}
