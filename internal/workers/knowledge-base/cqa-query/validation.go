package cqaquery

import "cqa-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["messageText"],
	"properties": {
		"messageText": {"type": "string", "minLength": 1, "maxLength": 1000},
		"sessionId": {"type": "string", "maxLength": 128},
		"capabilities": {"type": "object"}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
