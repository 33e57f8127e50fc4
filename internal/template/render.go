// Package template provisions groups of resources in order. Each step's
// options may reference fields of the previous step's API response.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnresolved means a placeholder names a field the response lacks.
var ErrUnresolved = errors.New("unresolved placeholder")

var placeholder = regexp.MustCompile(`\{\{\s*response\.([^\s{}]+)\s*\}\}`)

// Render replaces {{ response.<path> }} in every string of options with the
// value at path in previous. A string that is exactly one placeholder takes
// the referenced value with its JSON type; embedded placeholders are
// substituted as text. options is not modified.
func Render(options map[string]any, previous json.RawMessage) (map[string]any, error) {
	out, err := renderValue(options, previous)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	return m, nil
}

func renderValue(v any, previous json.RawMessage) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return map[string]any(nil), nil
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			r, err := renderValue(val, previous)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			r, err := renderValue(val, previous)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	case string:
		return renderString(t, previous)
	default:
		return v, nil
	}
}

func renderString(s string, previous json.RawMessage) (any, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	if m := placeholder.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
		res, err := lookup(previous, s[m[2]:m[3]])
		if err != nil {
			return nil, err
		}
		return res.Value(), nil
	}

	var firstErr error
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		res, err := lookup(previous, path)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return res.String()
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func lookup(previous json.RawMessage, path string) (gjson.Result, error) {
	res := gjson.GetBytes(previous, path)
	if !res.Exists() {
		return res, fmt.Errorf("%w: response.%s", ErrUnresolved, path)
	}
	return res, nil
}

// Merge overlays additional on defaults. Top-level keys of additional win.
func Merge(defaults, additional map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(additional))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range additional {
		out[k] = v
	}
	return out
}

// InheritProject copies the previous response's project into options when
// the template asks for it and options do not name a project already.
func InheritProject(options map[string]any, previous json.RawMessage, usePrevious bool) map[string]any {
	if !usePrevious {
		return options
	}
	if _, ok := options["project"]; ok {
		return options
	}
	project := gjson.GetBytes(previous, "project")
	if !project.Exists() {
		return options
	}
	out := Merge(options, nil)
	out["project"] = project.Value()
	return out
}

// Prepare turns a stored template into the request body of its provision
// call.
func Prepare(raw json.RawMessage, additional map[string]any, previous json.RawMessage, usePrevious bool) (map[string]any, error) {
	options := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &options); err != nil {
			return nil, fmt.Errorf("decode template options: %w", err)
		}
	}
	options = Merge(options, additional)
	if len(previous) > 0 {
		var err error
		if options, err = Render(options, previous); err != nil {
			return nil, err
		}
	}
	return InheritProject(options, previous, usePrevious), nil
}
