package cqa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
)

// fakeService scripts the question-answering endpoints.
type fakeService struct {
	t   *testing.T
	srv *httptest.Server

	mu             sync.Mutex
	exportStatuses []JobStatus
	importStatuses []JobStatus
	exportPolls    int
	importPolls    int
	archive        []byte
	uploaded       []byte
	omitLocation   bool
	failDownload   bool
	queryResponse  QueryResponse
	queries        []QueryRequest
	keys           []string
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{t: t}
	mux := http.NewServeMux()

	mux.HandleFunc("/language/query-knowledgebases/projects/faq/:export", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "tsv", r.URL.Query().Get("format"))
		assert.Equal(t, "2021-10-01", r.URL.Query().Get("api-version"))
		if !f.omitLocation {
			w.Header().Set("Operation-Location", f.srv.URL+"/jobs/export")
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/language/query-knowledgebases/projects/faq/:import", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		assert.Equal(t, "application/zip", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploaded = body
		f.mu.Unlock()
		if !f.omitLocation {
			w.Header().Set("Operation-Location", f.srv.URL+"/jobs/import")
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/jobs/export", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		st := f.exportStatuses[min(f.exportPolls, len(f.exportStatuses)-1)]
		f.exportPolls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("/jobs/import", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		st := f.importStatuses[min(f.importPolls, len(f.importStatuses)-1)]
		f.importPolls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.failDownload {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		_, _ = w.Write(f.archive)
	})
	mux.HandleFunc("/language/:query-knowledgebases", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		assert.Equal(t, "faq", r.URL.Query().Get("projectName"))
		assert.Equal(t, "production", r.URL.Query().Get("deploymentName"))
		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.queries = append(f.queries, req)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.queryResponse)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, r.Header.Get(SubscriptionKeyHeader))
}

func (f *fakeService) caps() Capabilities {
	return Capabilities{EndpointURL: f.srv.URL + "/", EndpointKey: "secret", ProjectName: "faq"}
}

func (f *fakeService) client(t *testing.T, opts ...Option) *Client {
	opts = append([]Option{WithPollInterval(time.Millisecond)}, opts...)
	c, err := NewClient(f.caps(), logger.NewTestLogger(t), opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_ValidatesEagerly(t *testing.T) {
	_, err := NewClient(Capabilities{EndpointURL: "http://x", ProjectName: "p"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "AZURE_CQA_ENDPOINT_KEY capability required")
}

func TestOptionsFromConfig(t *testing.T) {
	caps := Capabilities{EndpointURL: "http://x", EndpointKey: "k", ProjectName: "p"}

	c, err := NewClient(caps, nil, OptionsFromConfig(config.CQAConfig{
		PollInterval:     250,
		FetchMaxAttempts: 5,
		RequestTimeout:   2000,
	})...)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, c.pollInterval)
	assert.Equal(t, 5, c.fetchMaxAttempts)
	assert.Equal(t, DefaultUploadMaxAttempts, c.uploadMaxAttempts)
	assert.Equal(t, 2*time.Second, c.requestTimeout)

	c, err = NewClient(caps, nil, OptionsFromConfig(config.CQAConfig{})...)
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, c.pollInterval)
	assert.Equal(t, DefaultRequestTimeout, c.requestTimeout)
}

func TestFetchArchive(t *testing.T) {
	f := newFakeService(t)
	f.archive = []byte("zip bytes")
	f.exportStatuses = []JobStatus{
		{Status: "notStarted"},
		{Status: "running"},
		{Status: "succeeded", ResultURL: f.srv.URL + "/result"},
	}

	var messages []string
	archive, err := f.client(t).FetchArchive(context.Background(), func(m string) { messages = append(messages, m) })

	require.NoError(t, err)
	assert.Equal(t, []byte("zip bytes"), archive)
	assert.Equal(t, 3, f.exportPolls)
	assert.Equal(t, []string{
		"Try #1 done. Download is not finished yet. Waiting 1ms.",
		"Try #2 done. Download is not finished yet. Waiting 1ms.",
	}, messages)
	for _, key := range f.keys {
		assert.Equal(t, "secret", key)
	}
}

func TestFetchArchive_FailedStatusStopsPolling(t *testing.T) {
	f := newFakeService(t)
	f.exportStatuses = []JobStatus{{Status: "running"}, {Status: "failed"}, {Status: "running"}}

	_, err := f.client(t).FetchArchive(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrJobFailed)
	assert.Equal(t, 2, f.exportPolls)
}

func TestFetchArchive_ErrorsStopPolling(t *testing.T) {
	f := newFakeService(t)
	f.exportStatuses = []JobStatus{{Status: "running", Errors: []json.RawMessage{json.RawMessage(`"boom"`)}}}

	_, err := f.client(t).FetchArchive(context.Background(), nil)

	assert.ErrorIs(t, err, errors.ErrJobFailed)
	assert.Contains(t, err.Error(), `"boom"`)
	assert.Equal(t, 1, f.exportPolls)
}

func TestFetchArchive_TimesOut(t *testing.T) {
	f := newFakeService(t)
	f.exportStatuses = []JobStatus{{Status: "running"}}

	_, err := f.client(t, WithMaxAttempts(4, 0)).FetchArchive(context.Background(), nil)

	assert.ErrorIs(t, err, errors.ErrJobTimeout)
	assert.Equal(t, 4, f.exportPolls)
}

func TestFetchArchive_MissingOperationLocation(t *testing.T) {
	f := newFakeService(t)
	f.omitLocation = true

	_, err := f.client(t).FetchArchive(context.Background(), nil)

	assert.ErrorIs(t, err, errors.ErrProtocolViolation)
	assert.Equal(t, 0, f.exportPolls)
}

func TestFetchArchive_DownloadFailure(t *testing.T) {
	f := newFakeService(t)
	f.failDownload = true
	f.exportStatuses = []JobStatus{{Status: "succeeded", ResultURL: f.srv.URL + "/result"}}

	_, err := f.client(t).FetchArchive(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransportFailed)
	assert.Contains(t, err.Error(), "Download failed")
}

func TestFetchArchive_HonorsCancellation(t *testing.T) {
	f := newFakeService(t)
	f.exportStatuses = []JobStatus{{Status: "running"}}

	ctx, cancel := context.WithCancel(context.Background())
	c := f.client(t, WithPollInterval(time.Hour))
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchArchive(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.exportPolls)
}

func TestUploadArchive(t *testing.T) {
	f := newFakeService(t)
	f.importStatuses = []JobStatus{{Status: "notStarted"}, {Status: "running"}, {Status: "succeeded"}}

	var polls []int
	c := f.client(t, WithPollObserver(func(_ context.Context, kind JobKind, attempt int) {
		assert.Equal(t, JobUpload, kind)
		polls = append(polls, attempt)
	}))
	st, err := c.UploadArchive(context.Background(), []byte("archive"), nil)

	require.NoError(t, err)
	assert.Equal(t, "succeeded", st.Status)
	assert.Equal(t, []byte("archive"), f.uploaded)
	assert.Equal(t, []int{1, 2, 3}, polls)
}

func TestUploadArchive_BudgetExhausted(t *testing.T) {
	f := newFakeService(t)
	f.importStatuses = []JobStatus{{Status: "running"}}

	_, err := f.client(t).UploadArchive(context.Background(), []byte("archive"), nil)

	assert.ErrorIs(t, err, errors.ErrJobTimeout)
	assert.Equal(t, DefaultUploadMaxAttempts, f.importPolls)
}
