package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func conditionScope() *Scope {
	return NewScope(
		map[string]map[string]any{
			"approval": {"approved": true, "comment": "looks good"},
			"scan":     {"summary": "2 critical findings", "labels": []any{"critical", "network"}},
			"score":    {"value": float64(80), "grade": "B"},
			"empty":    {"text": "", "zero": float64(0), "list": []any{}},
		},
		map[string]any{
			"trigger_data": map[string]any{"threshold": float64(75), "mode": "strict"},
		},
	)
}

func TestEvalConditionComparisons(t *testing.T) {
	scope := conditionScope()

	tests := []struct {
		condition string
		want      bool
	}{
		{"result.approval.approved == true", true},
		{"result.approval.approved == false", false},
		{"result.approval.approved != false", true},
		{"result.score.value == 80", true},
		{"result.score.value >= 80", true},
		{"result.score.value > 80", false},
		{"result.score.value <= 80", true},
		{"result.score.value < 100", true},
		{"result.score.value != 80", false},
		{"result.score.value >= context.trigger_data.threshold", true},
		{"context.trigger_data.mode == \"strict\"", true},
		{"context.trigger_data.mode == 'strict'", true},
		{"context.trigger_data.mode == relaxed", false},
		{"result.approval.comment == \"looks good\"", true},
		// numeric comparison wins over lexicographic when both sides parse
		{"9 < 10", true},
		{"result.score.grade > \"A\"", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EvalCondition(tt.condition, scope), "condition %q", tt.condition)
	}
}

func TestEvalConditionContains(t *testing.T) {
	scope := conditionScope()

	assert.True(t, EvalCondition(`result.scan.summary contains "critical"`, scope))
	assert.False(t, EvalCondition(`result.scan.summary contains "benign"`, scope))
	assert.True(t, EvalCondition(`result.scan.labels contains "network"`, scope))
	assert.False(t, EvalCondition(`result.scan.labels contains "storage"`, scope))
	// contains on a missing or non-container value is false
	assert.False(t, EvalCondition(`result.scan.missing contains "x"`, scope))
	assert.False(t, EvalCondition(`result.score.value contains "8"`, scope))
}

func TestEvalConditionOperatorInsideQuotedLiteral(t *testing.T) {
	scope := NewScope(map[string]map[string]any{
		"note": {"text": "x == y", "memo": "a contains b"},
	}, nil)

	// operators embedded in quoted literals never split the expression
	assert.True(t, EvalCondition(`result.note.text == "x == y"`, scope))
	assert.False(t, EvalCondition(`result.note.text != "x == y"`, scope))
	assert.True(t, EvalCondition(`result.note.memo == "a contains b"`, scope))
	assert.True(t, EvalCondition(`result.note.text contains "=="`, scope))
	assert.True(t, EvalCondition(`'a contains b' == 'a contains b'`, scope))
}

func TestEvalConditionBareReference(t *testing.T) {
	scope := conditionScope()

	assert.True(t, EvalCondition("result.approval.approved", scope))
	assert.True(t, EvalCondition("result.approval.comment", scope))
	assert.True(t, EvalCondition("result.score.value", scope))
	assert.False(t, EvalCondition("result.empty.text", scope))
	assert.False(t, EvalCondition("result.empty.zero", scope))
	assert.False(t, EvalCondition("result.empty.list", scope))
	assert.False(t, EvalCondition("result.nothing.here", scope))
}

func TestEvalConditionEmptyAlwaysFires(t *testing.T) {
	scope := conditionScope()
	assert.True(t, EvalCondition("", scope))
	assert.True(t, EvalCondition("   ", scope))
}

func TestEvalConditionUnparseableIsFalse(t *testing.T) {
	scope := conditionScope()
	assert.False(t, EvalCondition("?? not a condition ??", scope))
	assert.False(t, EvalCondition("== true", scope))
	assert.False(t, EvalCondition("result.score.value >=", scope))
}

func TestFiringEdges(t *testing.T) {
	def := &Definition{
		ID: "gate", Name: "gate", Version: 1, Status: FlowStatusActive,
		Nodes: []Node{
			{ID: "assess", Type: NodeTypeAgent, AgentRef: "a", Skill: "s"},
			{ID: "approve", Type: NodeTypeTerminal},
			{ID: "reject", Type: NodeTypeTerminal},
			{ID: "audit", Type: NodeTypeTerminal},
		},
		Edges: []Edge{
			{From: "assess", To: "approve", Condition: "result.assess.score >= 75"},
			{From: "assess", To: "reject", Condition: "result.assess.score < 75"},
			{From: "assess", To: "audit"},
		},
	}

	scope := NewScope(map[string]map[string]any{"assess": {"score": float64(90)}}, nil)
	assert.Equal(t, []string{"approve", "audit"}, FiringEdges(def, "assess", scope))

	scope = NewScope(map[string]map[string]any{"assess": {"score": float64(40)}}, nil)
	assert.Equal(t, []string{"reject", "audit"}, FiringEdges(def, "assess", scope))

	// no outgoing edges at all
	assert.Empty(t, FiringEdges(def, "approve", scope))
}
