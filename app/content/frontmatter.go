package content

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var frontmatterPattern = regexp.MustCompile(`^---\r?\n([\s\S]*?)\r?\n---\r?\n([\s\S]*)$`)

// Document is a markdown file split into its frontmatter block and body.
// Metadata values are kept as plain strings; a YAML block list is joined
// with ", ".
type Document struct {
	Metadata map[string]string
	Body     string
}

func ParseFrontmatter(raw string) Document {
	match := frontmatterPattern.FindStringSubmatch(raw)
	if match == nil {
		return Document{Metadata: map[string]string{}, Body: raw}
	}

	metadata := parseLines(match[1])
	for key, items := range blockLists(match[1]) {
		if metadata[key] == "" {
			metadata[key] = strings.Join(items, ", ")
		}
	}

	return Document{Metadata: metadata, Body: match[2]}
}

// parseLines keeps every "key: value" line verbatim after the first colon;
// anything else is skipped.
func parseLines(block string) map[string]string {
	metadata := make(map[string]string)
	for _, line := range strings.Split(block, "\n") {
		colon := strings.Index(line, ":")
		if colon <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:colon])
		if key == "" {
			continue
		}
		metadata[key] = unquote(strings.TrimSpace(strings.TrimSuffix(line[colon+1:], "\r")))
	}
	return metadata
}

// blockLists returns the keys written as indented "- item" lists, which the
// line parser sees as empty values. Blocks that are not valid YAML have none.
func blockLists(block string) map[string][]string {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(block), &root); err != nil {
		return nil
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil
	}

	mapping := root.Content[0]
	lists := make(map[string][]string)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.SequenceNode || value.Style&yaml.FlowStyle != 0 {
			continue
		}

		var items []string
		for _, item := range value.Content {
			if item.Kind == yaml.ScalarNode && item.Value != "" {
				items = append(items, item.Value)
			}
		}
		lists[strings.TrimSpace(key.Value)] = items
	}
	return lists
}

func (d Document) Get(key string) string {
	return d.Metadata[key]
}

// Tags returns the frontmatter tag list written either as [a, b] or a, b.
func (d Document) Tags() []string {
	return splitList(d.Metadata["tags"])
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}

func splitList(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	if value == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(value, ",") {
		part = unquote(strings.TrimSpace(part))
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
