package kbsync

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RunListener is told about every finished run, successful or not.
type RunListener interface {
	RunFinished(ctx context.Context, run Run) error
}

// Mailer is satisfied by aws.SESClient.
type Mailer interface {
	SendText(ctx context.Context, to []string, subject, body string) (string, error)
}

// EmailReport mails a plain-text summary of each finished run.
type EmailReport struct {
	mailer     Mailer
	recipients []string
	onlyFailed bool
}

// NewEmailReport mails every run, or only failed runs when onlyFailed is set.
func NewEmailReport(m Mailer, recipients []string, onlyFailed bool) *EmailReport {
	return &EmailReport{mailer: m, recipients: recipients, onlyFailed: onlyFailed}
}

func (r *EmailReport) RunFinished(ctx context.Context, run Run) error {
	if r.onlyFailed && run.Status != RunFailed {
		return nil
	}
	subject := fmt.Sprintf("[kbsync] %s of %s %s", run.Direction, run.Project, run.Status)
	_, err := r.mailer.SendText(ctx, r.recipients, subject, summarize(run))
	return err
}

func summarize(run Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:       %s\n", run.ID)
	fmt.Fprintf(&b, "Project:   %s\n", run.Project)
	fmt.Fprintf(&b, "Direction: %s\n", run.Direction)
	if run.Mode != "" {
		fmt.Fprintf(&b, "Mode:      %s\n", run.Mode)
	}
	fmt.Fprintf(&b, "Status:    %s\n", run.Status)
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error:     %s\n", run.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "\nAnswers:   %d\nQuestions: %d\n", run.Answers, run.Questions)
	if run.Direction == DirectionExport {
		fmt.Fprintf(&b, "Created:   %d\nUpdated:   %d\nDropped:   %d\n", run.Created, run.Updated, run.Dropped)
	}
	return b.String()
}
