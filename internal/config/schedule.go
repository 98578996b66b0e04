package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// LocalCron converts a daily run at hour:00 in loc into a UTC cron
// expression. days is the day-of-week field ("*", "1,3,5", ...). The
// offset is taken at the given instant, so DST zones use the offset in
// effect at that time.
func LocalCron(hour int, days string, loc *time.Location, at time.Time) (string, error) {
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("hour must be between 0 and 23, got %d", hour)
	}
	if days == "" {
		days = "*"
	}
	_, offset := at.In(loc).Zone()

	minutes := ((hour*60-offset/60)%(24*60) + 24*60) % (24 * 60)
	expr := fmt.Sprintf("%d %d * * %s", minutes%60, minutes/60, days)
	if _, err := ParseCron(expr); err != nil {
		return "", fmt.Errorf("invalid days %q: %w", days, err)
	}
	return expr, nil
}

// SetScheduleCron rewrites schedule.cron in the YAML file at path, keeping
// comments and key order.
func SetScheduleCron(path, expr string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	out, err := setYAMLValue(data, expr, "schedule", "cron")
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return writeFilePreservingMode(path, out)
}

func setYAMLValue(data []byte, value string, keys ...string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("top level is not a mapping")
	}

	node := doc.Content[0]
	for i, key := range keys {
		child := mappingValue(node, key)
		last := i == len(keys)-1
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			if last {
				child = &yaml.Node{Kind: yaml.ScalarNode}
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, child)
		}
		if last {
			child.Kind = yaml.ScalarNode
			child.Tag = "!!str"
			child.Value = value
			child.Style = yaml.SingleQuotedStyle
			child.Content = nil
			break
		}
		if child.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s is not a mapping", key)
		}
		node = child
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

var workflowCronLine = regexp.MustCompile(`(?m)^([ \t]*)- cron:.*$`)

// SetWorkflowCron replaces the first "- cron:" entry of a CI workflow file.
func SetWorkflowCron(path, expr string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	loc := workflowCronLine.FindSubmatchIndex(data)
	if loc == nil {
		return fmt.Errorf("%s has no '- cron:' entry", path)
	}
	indent := data[loc[2]:loc[3]]

	var out bytes.Buffer
	out.Write(data[:loc[0]])
	fmt.Fprintf(&out, "%s- cron: '%s'", indent, expr)
	out.Write(data[loc[1]:])
	return writeFilePreservingMode(path, out.Bytes())
}

func writeFilePreservingMode(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
