// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// Capability names.
const (
	CapEndpointURL                = "AZURE_CQA_ENDPOINT_URL"
	CapEndpointKey                = "AZURE_CQA_ENDPOINT_KEY"
	CapProjectName                = "AZURE_CQA_PROJECT_NAME"
	CapUserID                     = "AZURE_CQA_USER_ID"
	CapDeploymentName             = "AZURE_CQA_DEPLOYMENT_NAME"
	CapAPIVersion                 = "AZURE_CQA_API_VERSION"
	CapRankerType                 = "AZURE_CQA_RANKER_TYPE"
	CapIncludeUnstructuredSources = "AZURE_CQA_INCLUDE_UNSTRUCTURED_SOURCES"
	CapAnswerSpan                 = "AZURE_CQA_ANSWER_SPAN"
)

const (
	DefaultAPIVersion     = "2021-10-01"
	DefaultDeploymentName = "production"
	DefaultRankerType     = "Default"
)

// Task types served by the worker manager.
const (
	TaskKBImport = "kb-import"
	TaskKBExport = "kb-export"
	TaskCQAQuery = "cqa-query"
)

var capabilities = []Capability{
	{Name: CapEndpointURL, Label: "Endpoint URL", Description: "Azure CQA endpoint URL", Type: "url", Required: true},
	{Name: CapEndpointKey, Label: "Endpoint Key", Description: "Azure CQA Subscription Key", Type: "secret", Required: true},
	{Name: CapProjectName, Label: "Project Name", Description: "Azure CQA Project Name", Type: "string", Required: true},
	{Name: CapUserID, Label: "User ID", Description: "User ID (Keep it empty to use random)", Type: "string", Advanced: true},
	{Name: CapDeploymentName, Label: "Deployment Name", Description: "Azure CQA Deployment Name", Type: "string", Advanced: true, Default: DefaultDeploymentName},
	{Name: CapAPIVersion, Label: "API Version", Description: "Azure CQA API Version", Type: "string", Advanced: true, Default: DefaultAPIVersion},
	{
		Name: CapRankerType, Label: "Ranker Type", Description: "Azure CQA Ranker Type", Type: "choice", Advanced: true,
		Default: DefaultRankerType,
		Choices: []Choice{{Key: "Default", Name: "Default"}, {Key: "QuestionOnly", Name: "QuestionOnly"}},
	},
	{Name: CapIncludeUnstructuredSources, Label: "Include Unstructured Sources", Type: "boolean", Advanced: true, Default: "true"},
	{Name: CapAnswerSpan, Label: "Answer Span", Description: "Enable Answer Span", Type: "boolean", Advanced: true, Default: "false"},
}

var activities = []Activity{
	{
		ID:          "knowledge-base.sync.import",
		DisplayName: "Import Knowledge Base",
		Description: "Downloads the knowledge base and converts it into utterance lists and conversations",
		Category:    "knowledge-base",
		TaskType:    TaskKBImport,
		ErrorCodes:  []string{"CONFIG_INVALID", "IMPORT_FAILED", "INPUT_INVALID"},
		Timeout:     "15m",
		Retries:     3,
		Tags:        []string{"cqa", "import"},
	},
	{
		ID:          "knowledge-base.sync.export",
		DisplayName: "Export Knowledge Base",
		Description: "Merges utterance lists and conversations into the knowledge base and uploads it",
		Category:    "knowledge-base",
		TaskType:    TaskKBExport,
		ErrorCodes:  []string{"CONFIG_INVALID", "EXPORT_FAILED", "INPUT_INVALID", "SYNC_CONFLICT"},
		Timeout:     "15m",
		Retries:     3,
		Tags:        []string{"cqa", "export"},
	},
	{
		ID:          "knowledge-base.query.ask",
		DisplayName: "Ask Knowledge Base",
		Description: "Sends one utterance and maps the best answer to a bot message",
		Category:    "knowledge-base",
		TaskType:    TaskCQAQuery,
		ErrorCodes:  []string{"CONFIG_INVALID", "QUERY_FAILED", "INPUT_INVALID"},
		Timeout:     "30s",
		Retries:     3,
		Tags:        []string{"cqa", "query"},
	},
}

// Default returns the built-in manifest.
func Default() *Manifest {
	return &Manifest{
		Name:     "Azure Conversational Question Answering",
		Provider: "Microsoft",
		Version:  1,
		Features: Features{
			IntentResolution:      true,
			IntentConfidenceScore: true,
			AlternateIntents:      true,
			TestCaseGeneration:    true,
			TestCaseExport:        true,
		},
		Capabilities: append([]Capability(nil), capabilities...),
		Activities:   append([]Activity(nil), activities...),
	}
}

// RequiredCapabilities lists mandatory capability names in manifest order.
func (m *Manifest) RequiredCapabilities() []string {
	var out []string
	for _, c := range m.Capabilities {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

func (m *Manifest) Capability(name string) (Capability, bool) {
	for _, c := range m.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

func (m *Manifest) Activity(taskType string) (Activity, bool) {
	for _, a := range m.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// LoadRegistry reads a manifest from a JSON file, e.g. one written by `kbsync manifest`.
func LoadRegistry(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
