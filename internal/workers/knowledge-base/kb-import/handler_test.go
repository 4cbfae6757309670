package kbimport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kb"
	"cqa-workers/internal/kbsync"
)

type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) Import(ctx context.Context, caps cqa.Capabilities, opts kbsync.ImportOptions) (*kbsync.ImportResult, error) {
	args := m.Called(ctx, caps, opts)
	if opts.Status != nil {
		opts.Status("Download started")
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kbsync.ImportResult), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "kb-sync",
		ElementId:          "Activity_KBImport",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, importer Importer) *Handler {
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Importer:     importer,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "defaults",
			opts: HandlerOptions{Importer: &MockImporter{}},
		},
		{
			name: "worker settings from app config",
			opts: HandlerOptions{
				AppConfig: &config.Config{Workers: map[string]config.WorkerConfig{
					TaskType: {Enabled: true, MaxJobsActive: 4, Timeout: 60000},
				}},
				Importer: &MockImporter{},
			},
		},
		{
			name:    "missing importer",
			opts:    HandlerOptions{},
			wantErr: "importer is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: -time.Second},
				Importer:     &MockImporter{},
			},
			wantErr: "timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h.logger)
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	cfg := createConfigFromAppConfig(&config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 4, Timeout: 60000},
	}}, nil)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 4, cfg.MaxJobsActive)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockImporter{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
		validate  func(*testing.T, *Input)
	}{
		{
			name:      "no capabilities",
			variables: map[string]interface{}{"other": "process variable"},
			validate: func(t *testing.T, in *Input) {
				assert.Nil(t, in.Capabilities)
			},
		},
		{
			name: "capability overrides",
			variables: map[string]interface{}{
				"capabilities": map[string]interface{}{"AZURE_CQA_PROJECT_NAME": "faq"},
			},
			validate: func(t *testing.T, in *Input) {
				assert.Equal(t, "faq", in.Capabilities["AZURE_CQA_PROJECT_NAME"])
			},
		},
		{
			name:      "capabilities not an object",
			variables: map[string]interface{}{"capabilities": "faq"},
			wantErr:   true,
		},
		{
			name: "empty project name",
			variables: map[string]interface{}{
				"capabilities": map[string]interface{}{"AZURE_CQA_PROJECT_NAME": ""},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInputInvalid)
				return
			}
			require.NoError(t, err)
			tt.validate(t, input)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	importer := &MockImporter{}
	importer.On("Import", mock.Anything, cqa.Capabilities{ProjectName: "faq"}, mock.Anything).Return(&kbsync.ImportResult{
		RunID:      "run-1",
		Utterances: []kb.UtteranceSet{{Name: "Q1", Utterances: []string{"Q1"}}},
		Convos:     []kb.Conversation{{Header: kb.ConvoHeader{Name: "Q1"}}},
		Stats:      kb.Stats{Answers: 1, Questions: 1},
	}, nil)

	h := newTestHandler(t, importer)
	out, err := h.Execute(context.Background(), &Input{Capabilities: map[string]interface{}{
		"AZURE_CQA_PROJECT_NAME": "faq",
	}})

	require.NoError(t, err)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 1, out.Answers)
	assert.Len(t, out.Utterances, 1)
	assert.Equal(t, []string{"Download started"}, out.StatusLog)
	importer.AssertExpectations(t)
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("bad capability value", func(t *testing.T) {
		h := newTestHandler(t, &MockImporter{})
		_, err := h.Execute(context.Background(), &Input{Capabilities: map[string]interface{}{
			"AZURE_CQA_ANSWER_SPAN": "sometimes",
		}})
		assert.ErrorIs(t, err, errors.ErrImportFailed)
		assert.ErrorIs(t, err, errors.ErrConfigInvalid)
	})

	t.Run("import failure is passed through", func(t *testing.T) {
		importer := &MockImporter{}
		importer.On("Import", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.NewImportError(errors.NewJobFailedError(errors.PhaseImport, "failed", "")))

		_, err := newTestHandler(t, importer).Execute(context.Background(), nil)

		assert.ErrorIs(t, err, errors.ErrImportFailed)
		assert.Equal(t, "failed", errors.JobStatusOf(err))
	})
}
