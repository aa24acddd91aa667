package flow

import (
	"strconv"
	"strings"
)

// Edge conditions are boolean expressions over the same {result, context}
// scope the variable resolver uses:
//
//	result.approval.approved == true
//	context.trigger_data.score >= 80
//	result.scan.summary contains "critical"
//	result.review.done
//
// A bare reference evaluates to its truthiness. An unparseable condition
// evaluates to false; conditions never abort the execution.

type compareOp string

const (
	opEq       compareOp = "=="
	opNe       compareOp = "!="
	opGe       compareOp = ">="
	opLe       compareOp = "<="
	opGt       compareOp = ">"
	opLt       compareOp = "<"
	opContains compareOp = "contains"
)

// binary operators in match order; two-char operators first so "==" is not
// split as "=" twice and ">=" is not split at ">"
var compareOps = []compareOp{opEq, opNe, opGe, opLe, opGt, opLt}

// EvalCondition evaluates an edge condition against the scope. An empty
// condition always fires.
func EvalCondition(condition string, scope *Scope) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true
	}

	if lhs, rhs, ok := splitOn(condition, " contains "); ok {
		return evalContains(lhs, rhs, scope)
	}
	for _, op := range compareOps {
		if lhs, rhs, ok := splitOn(condition, string(op)); ok {
			return evalCompare(lhs, op, rhs, scope)
		}
	}

	// Bare reference: truthiness of the value
	v, ok := scope.Lookup(condition)
	if !ok {
		return false
	}
	return truthy(v)
}

func splitOn(expr, sep string) (string, string, bool) {
	idx := indexOutsideQuotes(expr, sep)
	if idx < 0 {
		return "", "", false
	}
	lhs := strings.TrimSpace(expr[:idx])
	rhs := strings.TrimSpace(expr[idx+len(sep):])
	if lhs == "" || rhs == "" {
		return "", "", false
	}
	return lhs, rhs, true
}

// indexOutsideQuotes finds the first occurrence of sep that is not inside a
// single- or double-quoted literal, so operators embedded in quoted strings
// never split the expression.
func indexOutsideQuotes(expr, sep string) int {
	var quote byte
	for i := 0; i+len(sep) <= len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if strings.HasPrefix(expr[i:], sep) {
			return i
		}
	}
	return -1
}

func evalCompare(lhs string, op compareOp, rhs string, scope *Scope) bool {
	lv := operandValue(lhs, scope)
	rv := operandValue(rhs, scope)

	if lf, lok := asNumber(lv); lok {
		if rf, rok := asNumber(rv); rok {
			switch op {
			case opEq:
				return lf == rf
			case opNe:
				return lf != rf
			case opGe:
				return lf >= rf
			case opLe:
				return lf <= rf
			case opGt:
				return lf > rf
			case opLt:
				return lf < rf
			}
		}
	}

	ls, rs := asString(lv), asString(rv)
	switch op {
	case opEq:
		return ls == rs
	case opNe:
		return ls != rs
	case opGe:
		return ls >= rs
	case opLe:
		return ls <= rs
	case opGt:
		return ls > rs
	case opLt:
		return ls < rs
	}
	return false
}

func evalContains(lhs, rhs string, scope *Scope) bool {
	lv := operandValue(lhs, scope)
	rv := operandValue(rhs, scope)

	switch v := lv.(type) {
	case string:
		return strings.Contains(v, asString(rv))
	case []any:
		needle := asString(rv)
		for _, item := range v {
			if asString(item) == needle {
				return true
			}
		}
	}
	return false
}

// operandValue resolves an operand: result.* / context.* references go
// through the scope, everything else is a literal (bool, number, quoted or
// bare string).
func operandValue(operand string, scope *Scope) any {
	if validNamespace(operand) {
		v, ok := scope.Lookup(operand)
		if !ok {
			return nil
		}
		return v
	}
	switch operand {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}
	if f, err := strconv.ParseFloat(operand, 64); err == nil {
		return f
	}
	if len(operand) >= 2 {
		if (operand[0] == '"' && operand[len(operand)-1] == '"') ||
			(operand[0] == '\'' && operand[len(operand)-1] == '\'') {
			return operand[1 : len(operand)-1]
		}
	}
	return operand
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// FiringEdges returns, in declaration order, the targets of the outgoing
// edges of nodeID whose condition fires against the scope. An edge without a
// condition always fires. Zero firing edges marks the branch complete.
func FiringEdges(def *Definition, nodeID string, scope *Scope) []string {
	var next []string
	for _, e := range def.Outgoing(nodeID) {
		if EvalCondition(e.Condition, scope) {
			next = append(next, e.To)
		}
	}
	return next
}
