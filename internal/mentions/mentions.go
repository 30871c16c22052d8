// Package mentions extracts referenced-user identifiers from rich-content
// values. Content is the editor's JSON node tree; a mention is an inline node
// of type "mention" whose attrs carry the referenced user's id.
package mentions

import "encoding/json"

// Parse walks the content tree and returns the ids of mentioned users in
// document order, deduplicated. A nil or malformed value yields no mentions.
// Parse holds no state between calls.
func Parse(content json.RawMessage) []string {
	if len(content) == 0 {
		return nil
	}
	var root map[string]any
	if err := json.Unmarshal(content, &root); err != nil {
		return nil
	}

	ids := make([]string, 0)
	seen := make(map[string]struct{})
	walk(root, func(userID string) {
		if _, ok := seen[userID]; ok {
			return
		}
		seen[userID] = struct{}{}
		ids = append(ids, userID)
	})
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func walk(node map[string]any, visit func(userID string)) {
	nodeType, _ := node["type"].(string)
	if nodeType == "mention" {
		if attrs, ok := node["attrs"].(map[string]any); ok {
			if id, ok := attrs["id"].(string); ok && id != "" {
				visit(id)
			}
		}
	}
	content, ok := node["content"].([]any)
	if !ok {
		return
	}
	for _, item := range content {
		if child, ok := item.(map[string]any); ok {
			walk(child, visit)
		}
	}
}

// Diff returns the identifiers present in after but absent from before,
// preserving after's order. Inputs are assumed deduplicated, as Parse
// produces them.
func Diff(before, after []string) []string {
	prior := make(map[string]struct{}, len(before))
	for _, id := range before {
		prior[id] = struct{}{}
	}
	added := make([]string, 0)
	for _, id := range after {
		if _, ok := prior[id]; !ok {
			added = append(added, id)
		}
	}
	return added
}

// HasReopenDirective reports whether the content value carries an explicit
// top-level reopen flag. When set alongside a resolving actor, the update
// command reopens the comment instead of storing the content.
func HasReopenDirective(content json.RawMessage) bool {
	if len(content) == 0 {
		return false
	}
	var probe struct {
		Reopen bool `json:"reopen"`
	}
	if err := json.Unmarshal(content, &probe); err != nil {
		return false
	}
	return probe.Reopen
}
