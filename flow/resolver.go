package flow

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Scope is an immutable snapshot of {result, context} taken at the moment of
// action dispatch. Later node outputs never retroactively affect a template
// rendered against an earlier snapshot.
type Scope struct {
	doc []byte
}

// NewScope snapshots the node results and execution context into a scope.
// The two namespaces are addressable as result.<node_id>.<field> and
// context.<key>.
func NewScope(results map[string]map[string]any, execCtx map[string]any) *Scope {
	doc, err := json.Marshal(map[string]any{
		"result":  results,
		"context": execCtx,
	})
	if err != nil {
		// Non-serializable values degrade to an empty scope; resolution
		// stays total and missing paths render as empty strings.
		doc = []byte(`{}`)
	}
	return &Scope{doc: doc}
}

// Lookup resolves a dotted reference path (result.* or context.*) to its
// value. The second return reports whether the path exists.
func (s *Scope) Lookup(path string) (any, bool) {
	if !validNamespace(path) {
		return nil, false
	}
	r := gjson.GetBytes(s.doc, path)
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

// LookupString resolves a reference path to its textual form. Objects and
// arrays render as their JSON encoding; missing paths render as "".
func (s *Scope) LookupString(path string) string {
	if !validNamespace(path) {
		return ""
	}
	r := gjson.GetBytes(s.doc, path)
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	switch r.Type {
	case gjson.JSON:
		return r.Raw
	default:
		return r.String()
	}
}

func validNamespace(path string) bool {
	return strings.HasPrefix(path, "result.") || strings.HasPrefix(path, "context.")
}

var refPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// Resolve substitutes every ${result.<node>.<field>} and ${context.<key>}
// reference in the template with its value from the scope. A missing path
// resolves to an empty string, never an error, so rendering is total. A
// template with no reference markers is returned verbatim.
func Resolve(template string, scope *Scope) string {
	if template == "" || !strings.Contains(template, "${") {
		return template
	}
	return refPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		return scope.LookupString(path)
	})
}

// HasReferences reports whether the template contains any reference markers.
func HasReferences(template string) bool {
	return refPattern.MatchString(template)
}
