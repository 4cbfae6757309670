// Package kbsync runs knowledge-base imports and exports against the question-answering
// service: it wires the remote job driver, the codec and the merge engine together and
// records each run.
package kbsync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/common/metrics"
	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kb"
)

var tracer = otel.Tracer("cqa-workers/kbsync")

// StatusCallback receives progress messages. Import and export use the same shape.
type StatusCallback func(message string)

type ImportOptions struct {
	Status StatusCallback
}

type ImportResult struct {
	RunID      string            `json:"runId"`
	Utterances []kb.UtteranceSet `json:"utterances"`
	Convos     []kb.Conversation `json:"convos"`
	Stats      kb.Stats          `json:"stats"`
}

// ExportData is the local test-case content to push.
type ExportData struct {
	Utterances []kb.UtteranceSet `json:"utterances"`
	Convos     []kb.Conversation `json:"convos"`
}

type ExportOptions struct {
	Status StatusCallback
}

type ExportResult struct {
	RunID       string        `json:"runId"`
	FinalStatus cqa.JobStatus `json:"finalStatus"`
	Stats       kb.MergeStats `json:"stats"`
}

type Service struct {
	defaults    cqa.Capabilities
	clientOpts  []cqa.Option
	lock        Locker
	history     History
	notifier    Notifier
	listener    RunListener
	logger      logger.Logger
	lockTimeout time.Duration
}

type Option func(*Service)

func WithClientOptions(opts ...cqa.Option) Option {
	return func(s *Service) { s.clientOpts = append(s.clientOpts, opts...) }
}

func WithLock(l Locker) Option {
	return func(s *Service) { s.lock = l }
}

func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithRunListener(l RunListener) Option {
	return func(s *Service) { s.listener = l }
}

// NewService builds a sync service. defaults are overridden per call by non-empty
// capabilities.
func NewService(defaults cqa.Capabilities, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		defaults:    defaults,
		logger:      logger.OrNoOp(log),
		lockTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import downloads the knowledge base and converts it into test cases.
func (s *Service) Import(ctx context.Context, caps cqa.Capabilities, opts ImportOptions) (*ImportResult, error) {
	start := time.Now()
	caps = s.defaults.Override(caps)
	run := s.newRun(DirectionImport, caps.ProjectName, "")
	ctx, span := s.startSpan(ctx, run)
	defer span.End()
	log := s.runLogger(run, span)

	client, err := cqa.NewClient(caps, log, s.clientOpts...)
	if err != nil {
		s.observe(span, run, start, err)
		return nil, errors.NewImportError(err)
	}
	s.startRun(ctx, run, log)

	report := s.reporter(ctx, run, log, opts.Status)
	report("Download started")

	result, err := s.doImport(ctx, client, log, report)
	if result != nil {
		result.RunID = run.ID
		run.Answers, run.Questions = result.Stats.Answers, result.Stats.Questions
	}
	s.finishRun(ctx, run, log, err)
	s.observe(span, run, start, err)
	if err != nil {
		return nil, errors.NewImportError(err)
	}
	return result, nil
}

func (s *Service) doImport(ctx context.Context, client *cqa.Client, log logger.Logger, report cqa.StatusFunc) (*ImportResult, error) {
	archive, err := client.FetchArchive(ctx, report)
	if err != nil {
		return nil, err
	}

	records, err := kb.Decode(archive, log)
	if err != nil {
		return nil, err
	}
	stats := kb.Count(records)
	log.Info("Imported knowledge base", map[string]interface{}{
		"answers":   stats.Answers,
		"questions": stats.Questions,
	})

	utterances, convos := kb.ToTestCases(records)
	return &ImportResult{Utterances: utterances, Convos: convos, Stats: stats}, nil
}

// Export merges data into the remote knowledge base and uploads the result. Only one export
// per project runs at a time when a lock is configured.
func (s *Service) Export(ctx context.Context, caps cqa.Capabilities, mode kb.Mode, data ExportData, opts ExportOptions) (*ExportResult, error) {
	start := time.Now()
	caps = s.defaults.Override(caps)
	run := s.newRun(DirectionExport, caps.ProjectName, string(mode))
	ctx, span := s.startSpan(ctx, run)
	defer span.End()
	log := s.runLogger(run, span)

	client, err := cqa.NewClient(caps, log, s.clientOpts...)
	if err != nil {
		s.observe(span, run, start, err)
		return nil, errors.NewExportError(err)
	}

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, caps.ProjectName)
		if err != nil {
			s.observe(span, run, start, err)
			return nil, errors.NewExportError(err)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				log.Warn("Failed to release sync lock", map[string]interface{}{"error": err.Error()})
			}
		}()
	}
	s.startRun(ctx, run, log)

	report := s.reporter(ctx, run, log, opts.Status)
	report("Upload started")

	result, err := s.doExport(ctx, client, mode, data, log, report)
	if result != nil {
		result.RunID = run.ID
		run.Answers, run.Questions = result.Stats.Answers, result.Stats.Questions
		run.Created, run.Updated, run.Dropped = result.Stats.Created, result.Stats.Updated, result.Stats.Dropped
	}
	s.finishRun(ctx, run, log, err)
	s.observe(span, run, start, err)
	if err != nil {
		return nil, errors.NewExportError(err)
	}
	report("Export finished")
	return result, nil
}

func (s *Service) doExport(ctx context.Context, client *cqa.Client, mode kb.Mode, data ExportData, log logger.Logger, report cqa.StatusFunc) (*ExportResult, error) {
	archive, err := client.FetchArchive(ctx, report)
	if err != nil {
		return nil, err
	}
	remote, err := kb.Decode(archive, log)
	if err != nil {
		return nil, err
	}

	records, stats := kb.Merge(kb.BuildIndex(remote), data.Utterances, data.Convos, mode, log)
	log.Info("Ready to export", map[string]interface{}{
		"answers":        stats.Answers,
		"questions":      stats.Questions,
		"created":        stats.Created,
		"updated":        stats.Updated,
		"dropped":        stats.Dropped,
		"skippedConvos":  stats.SkippedConvos,
		"skippedIntents": stats.SkippedIntents,
	})

	upload, err := kb.Encode(records, log)
	if err != nil {
		return nil, err
	}

	final, err := client.UploadArchive(ctx, upload, report)
	if err != nil {
		return nil, err
	}
	log.Debug("Last export status", map[string]interface{}{
		"status": final.Status,
		"jobId":  final.JobID,
	})
	return &ExportResult{FinalStatus: final, Stats: stats}, nil
}

func (s *Service) newRun(direction, project, mode string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Project:   project,
		Direction: direction,
		Mode:      mode,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
}

func (s *Service) startSpan(ctx context.Context, run *Run) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kbsync."+run.Direction, trace.WithAttributes(
		attribute.String("kb.run_id", run.ID),
		attribute.String("kb.project", run.Project),
		attribute.String("kb.mode", run.Mode),
	))
}

func (s *Service) runLogger(run *Run, span trace.Span) logger.Logger {
	fields := map[string]interface{}{
		"runId":     run.ID,
		"project":   run.Project,
		"direction": run.Direction,
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		fields["traceId"] = sc.TraceID().String()
	}
	return s.logger.WithFields(fields)
}

// reporter logs every message, forwards it to cb and publishes it. A failed publish never
// fails the run.
func (s *Service) reporter(ctx context.Context, run *Run, log logger.Logger, cb StatusCallback) cqa.StatusFunc {
	return func(message string) {
		log.Info(message, nil)
		if cb != nil {
			cb(message)
		}
		if s.notifier == nil {
			return
		}
		event := StatusEvent{
			RunID:     run.ID,
			Project:   run.Project,
			Direction: run.Direction,
			Message:   message,
			Timestamp: time.Now().UTC(),
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			log.Warn("Failed to publish status", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (s *Service) startRun(ctx context.Context, run *Run, log logger.Logger) {
	if s.history == nil {
		return
	}
	if err := s.history.Start(ctx, run); err != nil {
		log.Warn("Failed to record sync run", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) finishRun(ctx context.Context, run *Run, log logger.Logger, runErr error) {
	run.FinishedAt = time.Now().UTC()
	run.Status = RunSucceeded
	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
	}
	if s.history == nil && s.listener == nil {
		return
	}
	// The run context may already be cancelled; the outcome is still worth recording.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lockTimeout)
	defer cancel()
	if s.history != nil {
		if err := s.history.Finish(recordCtx, run); err != nil {
			log.Warn("Failed to record sync run outcome", map[string]interface{}{"error": err.Error()})
		}
	}
	if s.listener != nil {
		if err := s.listener.RunFinished(recordCtx, *run); err != nil {
			log.Warn("Failed to report sync run outcome", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (s *Service) observe(span trace.Span, run *Run, start time.Time, err error) {
	status := RunSucceeded
	if err != nil {
		status = RunFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("kb.answers", run.Answers),
			attribute.Int("kb.questions", run.Questions),
		)
	}
	metrics.KBSyncRuns.WithLabelValues(run.Direction, status).Inc()
	metrics.KBSyncDuration.WithLabelValues(run.Direction).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.KBSyncRecords.WithLabelValues(run.Project, run.Direction, "answers").Set(float64(run.Answers))
		metrics.KBSyncRecords.WithLabelValues(run.Project, run.Direction, "questions").Set(float64(run.Questions))
	}
}
