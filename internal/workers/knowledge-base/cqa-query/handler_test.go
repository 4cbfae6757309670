package cqaquery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/cqa"
)

type queryServer struct {
	srv      *httptest.Server
	mu       sync.Mutex
	requests []map[string]interface{}
	response cqa.QueryResponse
	status   int
}

func newQueryServer(t *testing.T) *queryServer {
	q := &queryServer{status: http.StatusOK}
	q.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/language/:query-knowledgebases", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		q.mu.Lock()
		q.requests = append(q.requests, body)
		q.mu.Unlock()
		w.WriteHeader(q.status)
		_ = json.NewEncoder(w).Encode(q.response)
	}))
	t.Cleanup(q.srv.Close)
	return q
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "faq-bot",
		ElementId:          "Activity_Query",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func setupHandler(t *testing.T, q *queryServer) (*Handler, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Defaults:     cqa.Capabilities{EndpointURL: q.srv.URL, EndpointKey: "key", ProjectName: "faq"},
		Sessions:     NewRedisSessionStore(client, time.Hour),
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h, mr
}

func TestCreateConfigFromAppConfig_SessionTTL(t *testing.T) {
	cfg := createConfigFromAppConfig(&config.Config{CQA: config.CQAConfig{SessionTTL: 120000}}, nil)
	assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.Enabled)
}

func TestHandler_ParseInput(t *testing.T) {
	q := newQueryServer(t)
	h, _ := setupHandler(t, q)

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"messageText": "opening hours?",
		"sessionId":   "s-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "opening hours?", input.MessageText)
	assert.Equal(t, "s-1", input.SessionID)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{"sessionId": "s-1"}))
	assert.ErrorIs(t, err, errors.ErrInputInvalid)

	_, err = h.parseInput(createMockJob(3, map[string]interface{}{"messageText": ""}))
	assert.ErrorIs(t, err, errors.ErrInputInvalid)
}

func TestHandler_Execute_KeepsSessionContext(t *testing.T) {
	q := newQueryServer(t)
	q.response = cqa.QueryResponse{Answers: []cqa.Answer{
		{Questions: []string{"opening hours"}, Answer: "9 to 5", ConfidenceScore: 0.8, ID: 4},
	}}
	h, mr := setupHandler(t, q)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{MessageText: "when are you open"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, "9 to 5", first.Message.MessageText)
	assert.Equal(t, "opening hours", first.Intent)
	assert.True(t, first.Answered)
	assert.True(t, mr.Exists(sessionKeyPrefix+first.SessionID))

	_, err = h.Execute(ctx, &Input{MessageText: "and on sunday", SessionID: first.SessionID})
	require.NoError(t, err)

	require.Len(t, q.requests, 2)
	assert.Nil(t, q.requests[0]["context"])
	followUp, ok := q.requests[1]["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), followUp["previousQnaId"])
	assert.Equal(t, "when are you open", followUp["previousUserQuery"])
	assert.Equal(t, q.requests[0]["userId"], q.requests[1]["userId"])
}

func TestHandler_Execute_NoAnswer(t *testing.T) {
	q := newQueryServer(t)
	h, _ := setupHandler(t, q)

	out, err := h.Execute(context.Background(), &Input{MessageText: "xyzzy", SessionID: "s-2"})

	require.NoError(t, err)
	assert.Equal(t, "s-2", out.SessionID)
	assert.Equal(t, "None", out.Intent)
	assert.False(t, out.Answered)
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		q := newQueryServer(t)
		h, _ := setupHandler(t, q)
		_, err := h.Execute(context.Background(), &Input{MessageText: "  "})
		assert.ErrorIs(t, err, errors.ErrInputInvalid)
	})

	t.Run("missing capability", func(t *testing.T) {
		h, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
		require.NoError(t, err)
		_, err = h.Execute(context.Background(), &Input{MessageText: "hi"})
		assert.ErrorIs(t, err, errors.ErrQueryFailed)
		assert.ErrorIs(t, err, errors.ErrConfigInvalid)
	})

	t.Run("service error", func(t *testing.T) {
		q := newQueryServer(t)
		q.status = http.StatusInternalServerError
		h, _ := setupHandler(t, q)

		_, err := h.Execute(context.Background(), &Input{MessageText: "hi"})

		assert.ErrorIs(t, err, errors.ErrQueryFailed)
		assert.ErrorIs(t, err, errors.ErrTransportFailed)
		assert.Equal(t, 3, errors.ConvertToBPMNError(errors.Normalize(err)).Retries)
	})
}

func TestHandler_Execute_SessionStoreDown(t *testing.T) {
	q := newQueryServer(t)
	q.response = cqa.QueryResponse{Answers: []cqa.Answer{{Questions: []string{"hi"}, Answer: "hello", ID: 1}}}
	h, mr := setupHandler(t, q)
	mr.Close()

	out, err := h.Execute(context.Background(), &Input{MessageText: "hi", SessionID: "s-3"})

	require.NoError(t, err)
	assert.Equal(t, "hello", out.Message.MessageText)
}
