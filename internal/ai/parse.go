package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// parseAttributes extracts Attributes from a model reply. The happy path is
// a bare JSON object; code fences and surrounding prose are stripped first.
// When no JSON can be recovered, the first non-empty line becomes the name
// so a chatty model still yields a usable draft.
func parseAttributes(content string) (Attributes, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Attributes{}, errors.New("empty recognition response")
	}

	if raw, ok := extractJSONObject(content); ok {
		var attrs Attributes
		if err := json.Unmarshal([]byte(raw), &attrs); err == nil {
			attrs.trim()
			if attrs.Name != "" {
				return attrs, nil
			}
		}
	}

	// Fallback: treat the first line as the product name.
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "`*#"))
		if line != "" {
			return Attributes{Name: line}, nil
		}
	}
	return Attributes{}, errors.New("unparseable recognition response")
}

// extractJSONObject returns the first top-level {...} span in s.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func (a *Attributes) trim() {
	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	a.Material = strings.TrimSpace(a.Material)
	a.Dimensions = strings.TrimSpace(a.Dimensions)
	a.ProductionOrigin = strings.TrimSpace(a.ProductionOrigin)
	a.Packaging = strings.TrimSpace(a.Packaging)
}
