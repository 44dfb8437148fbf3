// Package app wires together the evaluation server's components: the
// reference dataset, the result store, the observer registry, the
// bounded worker pool, the two evaluators, and the build-handler
// resolver that backs code refinement.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bobmcallan/crab-eval/internal/buildhandler"
	"github.com/bobmcallan/crab-eval/internal/commenteval"
	"github.com/bobmcallan/crab-eval/internal/commenteval/ngrambleu"
	"github.com/bobmcallan/crab-eval/internal/common"
	"github.com/bobmcallan/crab-eval/internal/dataset"
	"github.com/bobmcallan/crab-eval/internal/evaljob"
	"github.com/bobmcallan/crab-eval/internal/models"
	"github.com/bobmcallan/crab-eval/internal/queuemanager"
	"github.com/bobmcallan/crab-eval/internal/refineeval"
	"github.com/bobmcallan/crab-eval/internal/resultstore"
)

// App holds every initialized component the HTTP/WebSocket transport
// layer needs to serve the evaluation API.
type App struct {
	Config *common.Config
	Logger *common.Logger

	Dataset      *dataset.LazyStore
	ResultStore  *resultstore.Store
	Registry     *evaljob.Registry
	Queue        *queuemanager.Manager
	CommentEval  *commenteval.Evaluator
	RefineEval   *refineeval.Evaluator
	BuildResolve *buildhandler.Resolver

	mu       sync.Mutex
	jobsByID map[string]*evaljob.Job
}

// NewApp loads configuration from configPath (if non-empty), wires every
// component, and recovers any completed results left over from a prior
// run. It does not start the HTTP server.
func NewApp(configPath string) (*App, error) {
	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	if err := os.MkdirAll(config.Dataset.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("app: create data path: %w", err)
	}

	store, err := resultstore.New(config.Storage.ResultsDir, config.Storage.GetTTL(), logger)
	if err != nil {
		return nil, fmt.Errorf("app: init result store: %w", err)
	}

	refs := dataset.NewLazy(config.Dataset.DatasetPath, config.Dataset.KeepStillInProgress, logger)
	registry := evaljob.NewRegistry()
	queue := queuemanager.New(config.Queue.MaxWorkers, logger)

	runtime, err := buildhandler.NewRuntime(config.Build.DockerHost)
	if err != nil && !config.Build.MockBuildHandler {
		logger.Warn().Err(err).Msg("docker runtime unavailable; build-handler operations will fail unless MOCK_BUILD_HANDLER is set")
	}
	resolver := buildhandler.NewResolver(runtime, config.Build.MockBuildHandler)

	a := &App{
		Config:       config,
		Logger:       logger,
		Dataset:      refs,
		ResultStore:  store,
		Registry:     registry,
		Queue:        queue,
		CommentEval:  commenteval.New(refs, ngrambleu.New(), logger),
		RefineEval:   refineeval.New(refs, resolver, config.Dataset.ArchivesRoot, logger),
		BuildResolve: resolver,
		jobsByID:     make(map[string]*evaljob.Job),
	}

	if err := a.recover(); err != nil {
		logger.Warn().Err(err).Msg("app: result store recovery reported an error")
	}

	return a, nil
}

// recover rehydrates completed jobs from the result store so status
// queries against ids from a prior process lifetime still resolve.
func (a *App) recover() error {
	recovered, err := a.ResultStore.Recover()
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range recovered {
		job := evaljob.Recovered(r.ID, r.Type, evaljob.MarshalResultsForRecovery(r.Results))
		a.jobsByID[r.ID] = job
	}
	if len(recovered) > 0 {
		a.Logger.Info().Int("count", len(recovered)).Msg("recovered completed jobs from result store")
	}
	return nil
}

// JobByID returns a job by its result-store id, if known to this process.
func (a *App) JobByID(id string) (*evaljob.Job, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.jobsByID[id]
	return j, ok
}

// SubmitComment reserves a result file, creates a Job bound to the
// comment evaluator, and hands it to the queue. Returns the new job id.
func (a *App) SubmitComment(submission models.CommentSubmission) (string, error) {
	return a.submit(models.JobTypeComment, submission)
}

// SubmitRefinement reserves a result file, creates a Job bound to the
// refinement evaluator, and hands it to the queue. Returns the new job id.
func (a *App) SubmitRefinement(submission models.RefinementSubmission) (string, error) {
	return a.submit(models.JobTypeRefinement, submission)
}

// submit is the shared reserve -> create -> register -> enqueue sequence
// behind both submission endpoints.
func (a *App) submit(jobType models.JobType, payload any) (string, error) {
	id, path, err := a.ResultStore.Reserve(jobType)
	if err != nil {
		return "", fmt.Errorf("app: reserve result slot: %w", err)
	}

	var task evaljob.Task
	switch jobType {
	case models.JobTypeComment:
		task = func(p any, pcb func(int), ccb func(any)) {
			submission, _ := p.(models.CommentSubmission)
			results := a.CommentEval.Evaluate(submission, pcb)
			ccb(results)
		}
	case models.JobTypeRefinement:
		task = a.RefineEval.Task()
	default:
		return "", fmt.Errorf("app: unknown job type %q", jobType)
	}

	job := evaljob.New(id, jobType, path, task)

	a.mu.Lock()
	a.jobsByID[id] = job
	a.mu.Unlock()

	a.Queue.Submit(job, payload, a.ResultStore.Finalize)
	return id, nil
}

// QueuePosition returns the 1-based FIFO position of id, or 0 if it is
// not currently waiting.
func (a *App) QueuePosition(id string) int {
	return a.Queue.GetPosition(id)
}

// DatasetArchivePath resolves a dataset download filename under DataPath,
// used by the dataset-download endpoint.
func (a *App) DatasetArchivePath(name string) string {
	return filepath.Join(a.Config.Dataset.DataPath, name)
}

// Close cancels the result store's pending TTL timers for clean shutdown.
func (a *App) Close() {
	a.ResultStore.Close()
}
