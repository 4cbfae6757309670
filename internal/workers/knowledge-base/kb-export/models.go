package kbexport

import (
	"context"

	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kb"
	"cqa-workers/internal/kbsync"
)

type Input struct {
	Mode         string                 `json:"mode,omitempty"`
	Utterances   []kb.UtteranceSet      `json:"utterances"`
	Convos       []kb.Conversation      `json:"convos,omitempty"`
	Capabilities map[string]interface{} `json:"capabilities,omitempty"`
}

type Output struct {
	RunID       string        `json:"kbRunId"`
	FinalStatus string        `json:"kbFinalStatus"`
	RemoteJobID string        `json:"kbRemoteJobId,omitempty"`
	Stats       kb.MergeStats `json:"kbExportStats"`
	StatusLog   []string      `json:"kbStatusLog,omitempty"`
}

// Exporter is implemented by kbsync.Service.
type Exporter interface {
	Export(ctx context.Context, caps cqa.Capabilities, mode kb.Mode, data kbsync.ExportData, opts kbsync.ExportOptions) (*kbsync.ExportResult, error)
}
