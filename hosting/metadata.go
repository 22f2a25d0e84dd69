package hosting

import (
	"fmt"
	"math"
	"strings"
)

// Metadata is the repository object returned by the hosting API, kept as
// decoded JSON so every field remains available to prompts.
type Metadata map[string]any

// Str returns the string at key, or def when absent, null or empty.
func (m Metadata) Str(key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Int returns the integer at key, or 0.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// Topics returns the topic list.
func (m Metadata) Topics() []string {
	raw, ok := m["topics"].([]any)
	if !ok {
		if ss, ok := m["topics"].([]string); ok {
			return ss
		}
		return nil
	}
	topics := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			topics = append(topics, s)
		}
	}
	return topics
}

// TopicList returns the topics joined by ", ", or def when there are none.
func (m Metadata) TopicList(def string) string {
	topics := m.Topics()
	if len(topics) == 0 {
		return def
	}
	return strings.Join(topics, ", ")
}

// Common accessors with the defaults used in prompts.
func (m Metadata) Name() string        { return m.Str("name", "Unknown") }
func (m Metadata) Description() string { return m.Str("description", "No description provided") }
func (m Metadata) Language() string    { return m.Str("language", "Not specified") }
