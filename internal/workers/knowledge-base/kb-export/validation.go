package kbexport

import "cqa-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["utterances"],
	"properties": {
		"mode": {"type": "string", "enum": ["", "append", "replace"]},
		"utterances": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "utterances"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"utterances": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"convos": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["conversation"],
				"properties": {
					"header": {"type": "object"},
					"conversation": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["sender"],
							"properties": {
								"sender": {"type": "string"},
								"messageText": {"type": "string"}
							}
						}
					}
				}
			}
		},
		"capabilities": {"type": "object"}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
