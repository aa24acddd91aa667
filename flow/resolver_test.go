package flow

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func sampleScope() *Scope {
	return NewScope(
		map[string]map[string]any{
			"intake": {
				"vendor_name": "Acme Corp",
				"score":       float64(87),
				"approved":    true,
				"tags":        []any{"priority", "eu"},
				"profile":     map[string]any{"region": "eu-west"},
			},
		},
		map[string]any{
			"context_id":   "vendor-42",
			"context_type": "vendor",
			"trigger_data": map[string]any{"source": "portal"},
		},
	)
}

func TestResolveSubstitutesReferences(t *testing.T) {
	scope := sampleScope()

	tests := []struct {
		template string
		want     string
	}{
		{"Vendor ${result.intake.vendor_name} scored ${result.intake.score}", "Vendor Acme Corp scored 87"},
		{"${context.context_id}", "vendor-42"},
		{"${context.trigger_data.source}", "portal"},
		{"approved=${result.intake.approved}", "approved=true"},
		{"${ result.intake.vendor_name }", "Acme Corp"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.template, scope), "template %q", tt.template)
	}
}

func TestResolveMissingPathRendersEmpty(t *testing.T) {
	scope := sampleScope()
	assert.Equal(t, "value: ", Resolve("value: ${result.intake.missing}", scope))
	assert.Equal(t, "", Resolve("${context.nope}", scope))
	assert.Equal(t, "a--b", Resolve("a-${result.ghost.field}-b", scope))
}

func TestResolveRejectsForeignNamespaces(t *testing.T) {
	scope := sampleScope()
	// Only result.* and context.* are addressable; anything else is a
	// missing path.
	assert.Equal(t, "", Resolve("${secrets.api_key}", scope))
	assert.Equal(t, "", Resolve("${result}", scope))
}

func TestResolveVerbatimWithoutMarkers(t *testing.T) {
	scope := sampleScope()
	for _, template := range []string{"", "plain text", "result.intake.score", "{context.context_id}"} {
		assert.Equal(t, template, Resolve(template, scope))
	}
}

func TestResolveRendersCompositesAsJSON(t *testing.T) {
	scope := sampleScope()
	assert.JSONEq(t, `{"region":"eu-west"}`, Resolve("${result.intake.profile}", scope))
	assert.JSONEq(t, `["priority","eu"]`, Resolve("${result.intake.tags}", scope))
}

func TestScopeLookup(t *testing.T) {
	scope := sampleScope()

	v, ok := scope.Lookup("result.intake.score")
	assert.True(t, ok)
	assert.Equal(t, float64(87), v)

	v, ok = scope.Lookup("result.intake.approved")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = scope.Lookup("result.intake.absent")
	assert.False(t, ok)

	_, ok = scope.Lookup("intake.score")
	assert.False(t, ok)
}

func TestScopeIsSnapshot(t *testing.T) {
	results := map[string]map[string]any{"a": {"v": "one"}}
	scope := NewScope(results, nil)

	results["a"]["v"] = "two"
	assert.Equal(t, "one", Resolve("${result.a.v}", scope))
}

func TestHasReferences(t *testing.T) {
	assert.True(t, HasReferences("${result.a.b}"))
	assert.True(t, HasReferences("x ${context.k} y"))
	assert.False(t, HasReferences("result.a.b"))
	assert.False(t, HasReferences(""))
}

// Resolution must be total: any template against any scope renders without
// panicking, and templates without markers come back verbatim.
func TestResolveTotalityProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	scope := sampleScope()

	properties.Property("never panics and strips all markers", prop.ForAll(
		func(template string) bool {
			out := Resolve(template, scope)
			return !strings.Contains(out, "${")
		},
		gen.RegexMatch(`([a-z ]{0,5}(\$\{(result|context)\.[a-z.]{0,12}\})?){0,4}`),
	))

	properties.Property("marker-free templates are identity", prop.ForAll(
		func(template string) bool {
			if strings.Contains(template, "${") {
				return true
			}
			return Resolve(template, scope) == template
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
