package kbimport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/common/metrics"
	"cqa-workers/internal/common/observability"
	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kbsync"
)

const (
	TaskType = "kb-import"

	commandTimeout = 10 * time.Second
)

type Handler struct {
	config       *Config
	importer     Importer
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Importer      Importer
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Importer == nil {
		return nil, fmt.Errorf("invalid configuration for %s: importer is required", TaskType)
	}

	log := logger.OrNoOp(opts.Logger).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       workerConfig,
		importer:     opts.Importer,
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

	h.logger.Info("Processing knowledge base import", map[string]interface{}{
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

// Execute runs one import. Status messages are collected into the output.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		input = &Input{}
	}

	caps, err := cqa.CapabilitiesFromMap(input.Capabilities)
	if err != nil {
		return nil, errors.NewImportError(err)
	}

	var statusLog []string
	res, err := h.importer.Import(ctx, caps, kbsync.ImportOptions{
		Status: func(message string) { statusLog = append(statusLog, message) },
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		RunID:      res.RunID,
		Utterances: res.Utterances,
		Convos:     res.Convos,
		Answers:    res.Stats.Answers,
		Questions:  res.Stats.Questions,
		StatusLog:  statusLog,
	}, nil
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
		return
	}

	h.logger.Info("Knowledge base import completed", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"runId":     output.RunID,
		"answers":   output.Answers,
		"questions": output.Questions,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, startTime time.Time) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "failed")

	// The job context may have expired; the failure must still reach the broker.
	sendCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	h.errorHandler.HandleJobError(sendCtx, client, job, err)
}
