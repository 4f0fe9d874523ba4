package mapping

import (
	"fmt"

	"go.yaml.in/yaml/v3"
)

// yamlEntry is one item of a YAML description catalog.
type yamlEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	AWS         string `yaml:"aws"`
	GCP         string `yaml:"gcp"`
	Azure       string `yaml:"azure"`
}

// ParseYAML reads a YAML description catalog: a list of entries with name,
// description, and optional aws/gcp/azure appendix keys. The same rules as
// the TSV format apply: names must be unique and non-empty, blank appendix
// values are absent.
func ParseYAML(data []byte) (*Table, error) {
	var items []yamlEntry
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing YAML catalog: %w", err)
	}

	entries := make(map[string]Entry)
	for i, item := range items {
		row := i + 1
		if item.Name == "" {
			return nil, &ParseError{Row: row, Msg: "empty variable name"}
		}
		if item.Description == "" {
			return nil, &ParseError{Row: row, Msg: fmt.Sprintf("variable %q has no description", item.Name)}
		}
		if _, exists := entries[item.Name]; exists {
			return nil, &ParseError{Row: row, Msg: fmt.Sprintf("duplicate variable %q", item.Name)}
		}

		entry := Entry{
			Name:        item.Name,
			Description: item.Description,
			Appendix:    make(map[Cloud]string),
		}
		setAppendix(&entry, CloudAWS, item.AWS)
		setAppendix(&entry, CloudGCP, item.GCP)
		setAppendix(&entry, CloudAzure, item.Azure)

		entries[item.Name] = entry
	}

	return &Table{entries: entries}, nil
}
