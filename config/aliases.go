package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"roster/ingest"
)

// AliasesConfig accepts either:
//  1. mapping form (preferred, order is kept):
//     aliases:
//     email: [courriel, mail address]
//     department: dept
//  2. list form:
//     aliases:
//     - field: email
//     labels: [courriel]
type AliasesConfig struct {
	Items []ingest.Alias
}

func (a *AliasesConfig) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case yaml.MappingNode:
		items := make([]ingest.Alias, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			k := value.Content[i]
			v := value.Content[i+1]
			field := strings.TrimSpace(k.Value)
			if field == "" {
				continue
			}
			// A value may be a single label or a list of labels.
			switch v.Kind {
			case yaml.ScalarNode:
				items = append(items, ingest.Alias{Field: field, Labels: cleanLabels([]string{v.Value})})
			case yaml.SequenceNode:
				var labels []string
				if err := v.Decode(&labels); err != nil {
					return fmt.Errorf("aliases.%s: %w", field, err)
				}
				items = append(items, ingest.Alias{Field: field, Labels: cleanLabels(labels)})
			default:
				return fmt.Errorf("aliases.%s: expected a label or a list of labels (line %d)", field, v.Line)
			}
		}
		a.Items = items
		return nil
	case yaml.SequenceNode:
		var items []ingest.Alias
		if err := value.Decode(&items); err != nil {
			return err
		}
		for i := range items {
			items[i].Field = strings.TrimSpace(items[i].Field)
			items[i].Labels = cleanLabels(items[i].Labels)
		}
		a.Items = items
		return nil
	default:
		return nil
	}
}

func cleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
