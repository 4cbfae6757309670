package cqa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/errors"
	"cqa-workers/pkg/registry"
)

// Capabilities configure the connection to one question-answering project.
type Capabilities struct {
	EndpointURL                string `json:"endpointUrl"`
	EndpointKey                string `json:"-"`
	ProjectName                string `json:"projectName"`
	APIVersion                 string `json:"apiVersion"`
	DeploymentName             string `json:"deploymentName"`
	UserID                     string `json:"userId"`
	RankerType                 string `json:"rankerType"`
	IncludeUnstructuredSources *bool  `json:"includeUnstructuredSources,omitempty"`
	AnswerSpan                 *bool  `json:"answerSpan,omitempty"`
}

// FromConfig takes the service defaults of the worker configuration.
func FromConfig(c config.CQAConfig) Capabilities {
	return Capabilities{
		EndpointURL:                c.EndpointURL,
		EndpointKey:                c.EndpointKey,
		ProjectName:                c.ProjectName,
		APIVersion:                 c.APIVersion,
		DeploymentName:             c.DeploymentName,
		UserID:                     c.UserID,
		RankerType:                 c.RankerType,
		IncludeUnstructuredSources: c.IncludeUnstructuredSources,
		AnswerSpan:                 &c.AnswerSpan,
	}
}

// CapabilitiesFromMap reads capabilities keyed by their manifest names, as passed in job
// variables. Booleans may be given as JSON booleans or strings.
func CapabilitiesFromMap(m map[string]interface{}) (Capabilities, error) {
	var c Capabilities

	str := func(name string) string {
		v, ok := m[name]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}

	c.EndpointURL = str(registry.CapEndpointURL)
	c.EndpointKey = str(registry.CapEndpointKey)
	c.ProjectName = str(registry.CapProjectName)
	c.APIVersion = str(registry.CapAPIVersion)
	c.DeploymentName = str(registry.CapDeploymentName)
	c.UserID = str(registry.CapUserID)
	c.RankerType = str(registry.CapRankerType)

	flag := func(name string) (*bool, error) {
		v, ok := m[name]
		if !ok || v == nil {
			return nil, nil
		}
		b, err := toBool(v)
		if err != nil {
			return nil, errors.NewConfigError(name, err.Error())
		}
		return &b, nil
	}

	var err error
	if c.IncludeUnstructuredSources, err = flag(registry.CapIncludeUnstructuredSources); err != nil {
		return c, err
	}
	if c.AnswerSpan, err = flag(registry.CapAnswerSpan); err != nil {
		return c, err
	}
	return c, nil
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if b == "" {
			return false, nil
		}
		return strconv.ParseBool(b)
	}
	return false, fmt.Errorf("expected boolean, got %T", v)
}

// Override returns c with every non-empty field of o applied on top. Flags apply whenever
// o sets them, so a job can switch a default off.
func (c Capabilities) Override(o Capabilities) Capabilities {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&c.EndpointURL, o.EndpointURL)
	set(&c.EndpointKey, o.EndpointKey)
	set(&c.ProjectName, o.ProjectName)
	set(&c.APIVersion, o.APIVersion)
	set(&c.DeploymentName, o.DeploymentName)
	set(&c.UserID, o.UserID)
	set(&c.RankerType, o.RankerType)
	if o.IncludeUnstructuredSources != nil {
		c.IncludeUnstructuredSources = o.IncludeUnstructuredSources
	}
	if o.AnswerSpan != nil {
		c.AnswerSpan = o.AnswerSpan
	}
	return c
}

// WithDefaults fills the optional capabilities. An empty user id becomes a random UUID.
func (c Capabilities) WithDefaults() Capabilities {
	c.EndpointURL = strings.TrimRight(c.EndpointURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = registry.DefaultAPIVersion
	}
	if c.DeploymentName == "" {
		c.DeploymentName = registry.DefaultDeploymentName
	}
	if c.RankerType == "" {
		c.RankerType = registry.DefaultRankerType
	}
	if c.IncludeUnstructuredSources == nil {
		include := true
		c.IncludeUnstructuredSources = &include
	}
	if c.UserID == "" {
		c.UserID = uuid.NewString()
	}
	return c
}

// Validate reports the first missing mandatory capability.
func (c Capabilities) Validate() error {
	values := map[string]string{
		registry.CapEndpointURL: c.EndpointURL,
		registry.CapEndpointKey: c.EndpointKey,
		registry.CapProjectName: c.ProjectName,
	}
	for _, name := range registry.Default().RequiredCapabilities() {
		if strings.TrimSpace(values[name]) == "" {
			return errors.NewConfigError(name, "")
		}
	}

	if c.RankerType != "" {
		ranker, _ := registry.Default().Capability(registry.CapRankerType)
		valid := false
		for _, choice := range ranker.Choices {
			if choice.Key == c.RankerType {
				valid = true
				break
			}
		}
		if !valid {
			return errors.NewConfigError(registry.CapRankerType, fmt.Sprintf("unknown ranker type %q", c.RankerType))
		}
	}
	return nil
}

func (c Capabilities) includeUnstructured() bool {
	return c.IncludeUnstructuredSources == nil || *c.IncludeUnstructuredSources
}

func (c Capabilities) answerSpan() bool {
	return c.AnswerSpan != nil && *c.AnswerSpan
}
