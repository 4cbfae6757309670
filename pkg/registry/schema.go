// pkg/registry/schema.go
package registry

// Manifest describes the connector: what it supports and which capabilities configure it.
type Manifest struct {
	Name         string       `json:"name" yaml:"name"`
	Provider     string       `json:"provider" yaml:"provider"`
	Version      int          `json:"pluginVersion" yaml:"pluginVersion"`
	Features     Features     `json:"features" yaml:"features"`
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`
	Activities   []Activity   `json:"activities" yaml:"activities"`
}

type Features struct {
	IntentResolution      bool `json:"intentResolution" yaml:"intentResolution"`
	IntentConfidenceScore bool `json:"intentConfidenceScore" yaml:"intentConfidenceScore"`
	AlternateIntents      bool `json:"alternateIntents" yaml:"alternateIntents"`
	TestCaseGeneration    bool `json:"testCaseGeneration" yaml:"testCaseGeneration"`
	TestCaseExport        bool `json:"testCaseExport" yaml:"testCaseExport"`
}

// Capability is one configuration parameter of the connector.
type Capability struct {
	Name        string   `json:"name" yaml:"name"`
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string   `json:"type" yaml:"type"`
	Required    bool     `json:"required" yaml:"required"`
	Advanced    bool     `json:"advanced,omitempty" yaml:"advanced,omitempty"`
	Default     string   `json:"default,omitempty" yaml:"default,omitempty"`
	Choices     []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`
}

type Choice struct {
	Key  string `json:"key" yaml:"key"`
	Name string `json:"name" yaml:"name"`
}

// Activity is a Zeebe task type served by the worker manager.
type Activity struct {
	ID          string   `json:"id" yaml:"id"`
	DisplayName string   `json:"displayName" yaml:"displayName"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category" yaml:"category"`
	TaskType    string   `json:"taskType" yaml:"taskType"`
	ErrorCodes  []string `json:"errorCodes" yaml:"errorCodes"`
	Timeout     string   `json:"timeout" yaml:"timeout"`
	Retries     int      `json:"retries" yaml:"retries"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}
