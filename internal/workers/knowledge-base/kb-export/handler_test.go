package kbexport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kb"
	"cqa-workers/internal/kbsync"
)

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Export(ctx context.Context, caps cqa.Capabilities, mode kb.Mode, data kbsync.ExportData, opts kbsync.ExportOptions) (*kbsync.ExportResult, error) {
	args := m.Called(ctx, caps, mode, data)
	if opts.Status != nil {
		opts.Status("Upload started")
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kbsync.ExportResult), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "kb-sync",
		ElementId:          "Activity_KBExport",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, exporter Exporter) *Handler {
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Exporter:     exporter,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandler_NewHandler_InvalidDefaultMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultMode = "merge"

	_, err := NewHandler(HandlerOptions{CustomConfig: cfg, Exporter: &MockExporter{}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown upload mode")
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockExporter{})

	validConvo := map[string]interface{}{
		"header": map[string]interface{}{"name": "greeting"},
		"conversation": []interface{}{
			map[string]interface{}{"sender": "me", "messageText": "GREETING"},
			map[string]interface{}{"sender": "bot", "messageText": "Hello!"},
		},
	}

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   string
		validate  func(*testing.T, *Input)
	}{
		{
			name: "utterances and convos",
			variables: map[string]interface{}{
				"mode": "replace",
				"utterances": []interface{}{
					map[string]interface{}{"name": "GREETING", "utterances": []interface{}{"hi", "hello"}},
				},
				"convos": []interface{}{validConvo},
			},
			validate: func(t *testing.T, in *Input) {
				assert.Equal(t, "replace", in.Mode)
				require.Len(t, in.Utterances, 1)
				assert.Equal(t, []string{"hi", "hello"}, in.Utterances[0].Utterances)
				require.Len(t, in.Convos, 1)
				assert.Equal(t, "Hello!", in.Convos[0].Conversation[1].MessageText)
			},
		},
		{
			name:      "missing utterances",
			variables: map[string]interface{}{"convos": []interface{}{validConvo}},
			wantErr:   "utterances",
		},
		{
			name: "unknown mode",
			variables: map[string]interface{}{
				"mode":       "merge",
				"utterances": []interface{}{},
			},
			wantErr: "mode",
		},
		{
			name: "utterance set without name",
			variables: map[string]interface{}{
				"utterances": []interface{}{map[string]interface{}{"utterances": []interface{}{"hi"}}},
			},
			wantErr: "name",
		},
		{
			name: "convo step without sender",
			variables: map[string]interface{}{
				"utterances": []interface{}{},
				"convos": []interface{}{map[string]interface{}{
					"conversation": []interface{}{map[string]interface{}{"messageText": "hi"}},
				}},
			},
			wantErr: "sender",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(7, tt.variables))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInputInvalid)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validate(t, input)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	data := kbsync.ExportData{
		Utterances: []kb.UtteranceSet{{Name: "GREETING", Utterances: []string{"hi"}}},
	}

	exporter := &MockExporter{}
	exporter.On("Export", mock.Anything, cqa.Capabilities{}, kb.ModeAppend, data).Return(&kbsync.ExportResult{
		RunID:       "run-9",
		FinalStatus: cqa.JobStatus{JobID: "remote-1", Status: "succeeded"},
		Stats:       kb.MergeStats{Created: 1, Answers: 3, Questions: 5},
	}, nil)

	out, err := newTestHandler(t, exporter).Execute(context.Background(), &Input{Utterances: data.Utterances})

	require.NoError(t, err)
	assert.Equal(t, "run-9", out.RunID)
	assert.Equal(t, "succeeded", out.FinalStatus)
	assert.Equal(t, "remote-1", out.RemoteJobID)
	assert.Equal(t, 1, out.Stats.Created)
	assert.Equal(t, []string{"Upload started"}, out.StatusLog)
	exporter.AssertExpectations(t)
}

func TestHandler_Execute_ReplaceMode(t *testing.T) {
	exporter := &MockExporter{}
	exporter.On("Export", mock.Anything, mock.Anything, kb.ModeReplace, mock.Anything).
		Return(&kbsync.ExportResult{RunID: "run-10"}, nil)

	_, err := newTestHandler(t, exporter).Execute(context.Background(), &Input{Mode: "replace"})

	require.NoError(t, err)
	exporter.AssertExpectations(t)
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		_, err := newTestHandler(t, &MockExporter{}).Execute(context.Background(), nil)
		assert.ErrorIs(t, err, errors.ErrInputInvalid)
	})

	t.Run("sync conflict is passed through", func(t *testing.T) {
		exporter := &MockExporter{}
		exporter.On("Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.NewExportError(errors.NewSyncConflictError("faq")))

		_, err := newTestHandler(t, exporter).Execute(context.Background(), &Input{})

		assert.ErrorIs(t, err, errors.ErrExportFailed)
		assert.ErrorIs(t, err, errors.ErrSyncConflict)
		bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
		assert.Equal(t, "EXPORT_FAILED", bpmn.Code)
		assert.Equal(t, 2, bpmn.Retries)
	})
}
