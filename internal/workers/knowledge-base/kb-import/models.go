package kbimport

import (
	"context"

	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kb"
	"cqa-workers/internal/kbsync"
)

// Input may override the configured service capabilities, keyed by manifest name.
type Input struct {
	Capabilities map[string]interface{} `json:"capabilities,omitempty"`
}

type Output struct {
	RunID      string            `json:"kbRunId"`
	Utterances []kb.UtteranceSet `json:"utterances"`
	Convos     []kb.Conversation `json:"convos"`
	Answers    int               `json:"kbAnswers"`
	Questions  int               `json:"kbQuestions"`
	StatusLog  []string          `json:"kbStatusLog,omitempty"`
}

// Importer is implemented by kbsync.Service.
type Importer interface {
	Import(ctx context.Context, caps cqa.Capabilities, opts kbsync.ImportOptions) (*kbsync.ImportResult, error)
}
