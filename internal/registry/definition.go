// ABOUTME: Declarative service and type definitions with YAML file loading.
// ABOUTME: One generic record type replaces per-service generated handler modules.

package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MethodDefinition is the declarative form of one method.
type MethodDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Write       bool   `yaml:"write"`
	RequestType string `yaml:"request_type"`
	Endpoint    string `yaml:"endpoint"`
	HTTPMethod  string `yaml:"http_method"`
}

// ServiceDefinition is the declarative form of one service.
type ServiceDefinition struct {
	Name    string             `yaml:"name"`
	Methods []MethodDefinition `yaml:"methods"`
}

// DefinitionFile is the on-disk shape of a service definition file.
type DefinitionFile struct {
	Services []ServiceDefinition `yaml:"services"`
	Types    []TypeInfo          `yaml:"types"`
}

// LoadDefinitions reads additional service and type definitions from a YAML
// file. The file extends the builtin set; a service whose name matches a
// builtin replaces it wholesale.
func LoadDefinitions(path string) (*DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions file: %w", err)
	}

	var file DefinitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing definitions file: %w", err)
	}

	for _, svc := range file.Services {
		if svc.Name == "" {
			return nil, fmt.Errorf("definitions file: service with empty name")
		}
		for _, m := range svc.Methods {
			if m.Name == "" || m.Endpoint == "" || m.HTTPMethod == "" {
				return nil, fmt.Errorf("definitions file: service %q: method needs name, endpoint and http_method", svc.Name)
			}
		}
	}

	return &file, nil
}

// MergeDefinitions overlays extra definitions on top of a base set.
// Extra services replace base services with the same canonical name.
func MergeDefinitions(base, extra []ServiceDefinition) []ServiceDefinition {
	merged := make([]ServiceDefinition, 0, len(base)+len(extra))
	replaced := make(map[string]struct{}, len(extra))
	for _, svc := range extra {
		replaced[Canonical(svc.Name)] = struct{}{}
	}
	for _, svc := range base {
		if _, ok := replaced[Canonical(svc.Name)]; ok {
			continue
		}
		merged = append(merged, svc)
	}
	return append(merged, extra...)
}
