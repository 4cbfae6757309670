package cqaquery

import "cqa-workers/internal/cqa"

type Input struct {
	MessageText  string                 `json:"messageText"`
	SessionID    string                 `json:"sessionId,omitempty"`
	Capabilities map[string]interface{} `json:"capabilities,omitempty"`
}

type Output struct {
	SessionID string          `json:"sessionId"`
	Message   *cqa.BotMessage `json:"botMessage"`
	Intent    string          `json:"intent"`
	Answered  bool            `json:"answered"`
}
