// Package cqa drives the question-answering service: it starts knowledge-base export and import
// jobs, polls them to a terminal state, downloads results and answers single queries.
package cqa

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/errors"
	commonhttp "cqa-workers/internal/common/http"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/common/metrics"
)

const (
	// SubscriptionKeyHeader carries the endpoint key on every request.
	SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	operationLocation     = "Operation-Location"

	DefaultPollInterval      = time.Second
	DefaultFetchMaxAttempts  = 600
	DefaultUploadMaxAttempts = 10
	DefaultRequestTimeout    = 60 * time.Second
)

// StatusFunc receives human-readable progress messages.
type StatusFunc func(message string)

// PollObserver is told about every status check.
type PollObserver func(ctx context.Context, kind JobKind, attempt int)

type Client struct {
	caps              Capabilities
	http              *commonhttp.Client
	logger            logger.Logger
	pollInterval      time.Duration
	fetchMaxAttempts  int
	uploadMaxAttempts int
	requestTimeout    time.Duration
	transport         http.RoundTripper
	observer          PollObserver
}

type Option func(*Client)

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithMaxAttempts sets the status-check budgets. Zero keeps the default.
func WithMaxAttempts(fetch, upload int) Option {
	return func(c *Client) {
		if fetch > 0 {
			c.fetchMaxAttempts = fetch
		}
		if upload > 0 {
			c.uploadMaxAttempts = upload
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

func WithPollObserver(o PollObserver) Option {
	return func(c *Client) { c.observer = o }
}

// OptionsFromConfig maps the configured polling policy onto client options.
func OptionsFromConfig(c config.CQAConfig) []Option {
	opts := []Option{WithMaxAttempts(c.FetchMaxAttempts, c.UploadMaxAttempts)}
	if c.PollInterval > 0 {
		opts = append(opts, WithPollInterval(config.GetDuration(c.PollInterval)))
	}
	if c.RequestTimeout > 0 {
		opts = append(opts, WithRequestTimeout(config.GetDuration(c.RequestTimeout)))
	}
	return opts
}

// NewClient validates caps before any network call and applies the optional defaults.
func NewClient(caps Capabilities, log logger.Logger, opts ...Option) (*Client, error) {
	caps = caps.WithDefaults()
	if err := caps.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		caps:              caps,
		logger:            logger.OrNoOp(log).WithFields(map[string]interface{}{"project": caps.ProjectName}),
		pollInterval:      DefaultPollInterval,
		fetchMaxAttempts:  DefaultFetchMaxAttempts,
		uploadMaxAttempts: DefaultUploadMaxAttempts,
		requestTimeout:    DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	httpOpts := []commonhttp.Option{commonhttp.WithHeader(SubscriptionKeyHeader, caps.EndpointKey)}
	if c.transport != nil {
		httpOpts = append(httpOpts, commonhttp.WithTransport(c.transport))
	}
	c.http = commonhttp.NewClient(c.requestTimeout, httpOpts...)

	return c, nil
}

func (c *Client) Capabilities() Capabilities { return c.caps }

func (c *Client) projectURL(operation string) string {
	q := url.Values{}
	q.Set("api-version", c.caps.APIVersion)
	q.Set("format", "tsv")
	return fmt.Sprintf("%s/language/query-knowledgebases/projects/%s/:%s?%s",
		c.caps.EndpointURL, url.PathEscape(c.caps.ProjectName), operation, q.Encode())
}

func (c *Client) queryURL() string {
	q := url.Values{}
	q.Set("projectName", c.caps.ProjectName)
	q.Set("api-version", c.caps.APIVersion)
	q.Set("deploymentName", c.caps.DeploymentName)
	return fmt.Sprintf("%s/language/:query-knowledgebases?%s", c.caps.EndpointURL, q.Encode())
}

// StartExport asks the service to export the knowledge base.
func (c *Client) StartExport(ctx context.Context) (*Job, error) {
	c.logger.Debug("Starting knowledge base export job", nil)

	resp, err := c.http.Send(ctx, http.MethodPost, c.projectURL("export"), nil, "")
	if err != nil {
		return nil, errors.NewTransportError(errors.PhaseImport, err)
	}
	return c.jobFrom(resp, JobFetch, errors.PhaseImport)
}

// StartImport uploads archive as the new knowledge base content.
func (c *Client) StartImport(ctx context.Context, archive []byte) (*Job, error) {
	c.logger.Debug("Starting knowledge base import job", map[string]interface{}{
		"bytes": len(archive),
	})

	resp, err := c.http.Send(ctx, http.MethodPost, c.projectURL("import"), bytes.NewReader(archive), "application/zip")
	if err != nil {
		return nil, errors.NewTransportError(errors.PhaseExport, err)
	}
	return c.jobFrom(resp, JobUpload, errors.PhaseExport)
}

func (c *Client) jobFrom(resp *commonhttp.Response, kind JobKind, phase string) (*Job, error) {
	location := resp.Header.Get(operationLocation)
	if location == "" {
		return nil, errors.NewProtocolError(phase, fmt.Sprintf("operation location not found in %v", resp.Header))
	}

	maxAttempts := c.fetchMaxAttempts
	if kind == JobUpload {
		maxAttempts = c.uploadMaxAttempts
	}
	c.logger.Debug("Remote job started", map[string]interface{}{
		"kind":              string(kind),
		"operationLocation": location,
	})
	return NewJob(kind, location, maxAttempts), nil
}

// PollStatus performs one status check.
func (c *Client) PollStatus(ctx context.Context, job *Job) (JobStatus, error) {
	var st JobStatus
	if _, err := c.http.SendJSON(ctx, http.MethodGet, job.Location, nil, &st); err != nil {
		return st, errors.NewTransportError(errors.PhaseStatusCheck, err)
	}
	return st, nil
}

// Wait polls job at the configured interval until it succeeds, fails or runs out of attempts.
func (c *Client) Wait(ctx context.Context, job *Job, report StatusFunc) (JobStatus, error) {
	if report == nil {
		report = func(string) {}
	}

	for {
		if err := ctx.Err(); err != nil {
			return job.Last(), err
		}

		st, err := c.PollStatus(ctx, job)
		if err != nil {
			return job.Last(), err
		}

		state := job.Observe(st)
		metrics.CQAJobPolls.WithLabelValues(string(job.Kind)).Inc()
		if c.observer != nil {
			c.observer(ctx, job.Kind, job.Attempts())
		}

		switch state {
		case JobSucceeded:
			c.logger.Debug("Remote job finished", map[string]interface{}{
				"kind":     string(job.Kind),
				"status":   st.Status,
				"attempts": job.Attempts(),
			})
			return st, nil
		case JobFailed, JobTimedOut:
			return st, job.Err()
		}

		report(fmt.Sprintf("Try #%d done. %s is not finished yet. Waiting %s.", job.Attempts(), job.noun(), c.pollInterval))

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// Download fetches the result of a finished export.
func (c *Client) Download(ctx context.Context, resultURL string) ([]byte, error) {
	resp, err := c.http.Send(ctx, http.MethodGet, resultURL, nil, "")
	if err != nil {
		return nil, errors.NewTransportError(errors.PhaseDownload, err)
	}
	return resp.Body, nil
}

// FetchArchive exports the knowledge base and returns the downloaded archive.
func (c *Client) FetchArchive(ctx context.Context, report StatusFunc) ([]byte, error) {
	job, err := c.StartExport(ctx)
	if err != nil {
		return nil, err
	}
	st, err := c.Wait(ctx, job, report)
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, st.ResultURL)
}

// UploadArchive imports archive and waits for the service to finish. The final status is
// returned on success.
func (c *Client) UploadArchive(ctx context.Context, archive []byte, report StatusFunc) (JobStatus, error) {
	job, err := c.StartImport(ctx, archive)
	if err != nil {
		return JobStatus{}, err
	}
	return c.Wait(ctx, job, report)
}
