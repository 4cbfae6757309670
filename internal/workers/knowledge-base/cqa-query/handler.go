package cqaquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/common/metrics"
	"cqa-workers/internal/common/observability"
	"cqa-workers/internal/cqa"
)

const (
	TaskType = "cqa-query"

	commandTimeout = 10 * time.Second
)

type Handler struct {
	config       *Config
	defaults     cqa.Capabilities
	clientOpts   []cqa.Option
	sessions     SessionStore
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Defaults      cqa.Capabilities
	ClientOptions []cqa.Option
	// Sessions may be nil, in which case every query starts a new conversation.
	Sessions      SessionStore
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	log := logger.OrNoOp(opts.Logger).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       workerConfig,
		defaults:     opts.Defaults,
		clientOpts:   opts.ClientOptions,
		sessions:     opts.Sessions,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
		obs:          opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Debug("Processing query", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputInvalidError(fmt.Sprintf("parse job variables: %v", err))
	}

	result := GetInputSchema().Validate(variables)
	if !result.Valid {
		return nil, errors.NewInputInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputInvalidError(fmt.Sprintf("decode job variables: %v", err))
	}
	return &input, nil
}

// Execute asks one question. A missing session id starts a new conversation whose id is
// returned for follow-up questions.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.MessageText) == "" {
		return nil, errors.NewInputInvalidError("messageText is required")
	}

	overrides, err := cqa.CapabilitiesFromMap(input.Capabilities)
	if err != nil {
		return nil, errors.NewQueryFailedError(err)
	}
	client, err := cqa.NewClient(h.defaults.Override(overrides), h.logger, h.clientOpts...)
	if err != nil {
		return nil, errors.NewQueryFailedError(err)
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session := h.loadSession(ctx, sessionID)

	msg, err := client.Query(ctx, session, input.MessageText)
	if err != nil {
		return nil, err
	}
	h.saveSession(ctx, sessionID, session)

	return &Output{
		SessionID: sessionID,
		Message:   msg,
		Intent:    msg.NLP.Intent.Name,
		Answered:  !msg.NLP.Intent.Incomprehension,
	}, nil
}

// A session store outage degrades to single-turn queries.
func (h *Handler) loadSession(ctx context.Context, id string) *cqa.Session {
	if h.sessions == nil {
		return &cqa.Session{}
	}
	session, err := h.sessions.Load(ctx, id)
	if err != nil {
		h.logger.Warn("Failed to load session, starting a new one", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
		return &cqa.Session{}
	}
	return session
}

func (h *Handler) saveSession(ctx context.Context, id string, session *cqa.Session) {
	if h.sessions == nil {
		return
	}
	if err := h.sessions.Save(ctx, id, session); err != nil {
		h.logger.Warn("Failed to save session", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, startTime time.Time) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "failed")

	sendCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	h.errorHandler.HandleJobError(sendCtx, client, job, err)
}
