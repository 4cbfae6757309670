package kbimport

import "cqa-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"capabilities": {
			"type": "object",
			"properties": {
				"AZURE_CQA_ENDPOINT_URL": {"type": "string", "minLength": 1},
				"AZURE_CQA_ENDPOINT_KEY": {"type": "string", "minLength": 1},
				"AZURE_CQA_PROJECT_NAME": {"type": "string", "minLength": 1},
				"AZURE_CQA_API_VERSION": {"type": "string"}
			}
		}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
