package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/homewatch-io/homewatch/internal/event"
	"github.com/homewatch-io/homewatch/internal/feature"
)

// operator is a comparison operator.
type operator string

const (
	opEq       operator = "=="
	opNeq      operator = "!="
	opGt       operator = ">"
	opGte      operator = ">="
	opLt       operator = "<"
	opLte      operator = "<="
	opContains operator = "contains"
)

// evalScope resolves field references during rule evaluation.
// Bare identifiers resolve to features; "event.*" to event fields; "meta.*"
// to raw metadata values.
type evalScope struct {
	ev       *event.Event
	features feature.Map
}

func (s *evalScope) resolve(path []string) (interface{}, bool) {
	if len(path) == 0 {
		return nil, false
	}
	switch path[0] {
	case "event":
		if len(path) != 2 {
			return nil, false
		}
		switch path[1] {
		case "type":
			return strings.ToLower(s.ev.Type), true
		case "location":
			return strings.ToLower(s.ev.Location), true
		case "confidence":
			return s.ev.Confidence, true
		case "id":
			return s.ev.ID, true
		}
		return nil, false
	case "meta":
		if len(path) != 2 || s.ev.Metadata == nil {
			return nil, false
		}
		v, ok := s.ev.Metadata[path[1]]
		return v, ok
	default:
		if len(path) != 1 {
			return nil, false
		}
		v, ok := s.features[path[0]]
		return v, ok
	}
}

// eval walks the AST. A reference to a missing field makes the comparison
// false rather than failing the rule set.
func eval(e expr, scope *evalScope) (bool, error) {
	switch n := e.(type) {
	case *logicExpr:
		left, err := eval(n.left, scope)
		if err != nil {
			return false, err
		}
		switch n.op {
		case "AND":
			if !left {
				return false, nil
			}
			return eval(n.right, scope)
		case "OR":
			if left {
				return true, nil
			}
			return eval(n.right, scope)
		default:
			return false, fmt.Errorf("unknown logic op %q", n.op)
		}
	case *notExpr:
		v, err := eval(n.inner, scope)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *cmpExpr:
		return evalCmp(n, scope)
	default:
		return false, fmt.Errorf("unknown expr type %T", e)
	}
}

func evalCmp(e *cmpExpr, scope *evalScope) (bool, error) {
	left, ok := resolveOperand(e.left, scope)
	if !ok {
		return false, nil
	}
	right, ok := resolveOperand(e.right, scope)
	if !ok {
		return false, nil
	}
	return compare(e.op, left, right)
}

func resolveOperand(op operand, scope *evalScope) (interface{}, bool) {
	switch o := op.(type) {
	case *literal:
		return o.value, true
	case *fieldRef:
		return scope.resolve(o.path)
	default:
		return nil, false
	}
}

func compare(op operator, left, right interface{}) (bool, error) {
	switch op {
	case opEq:
		return equal(left, right), nil
	case opNeq:
		return !equal(left, right), nil
	case opGt, opGte, opLt, opLte:
		return numericCompare(op, left, right)
	case opContains:
		ls, ok := left.(string)
		if !ok {
			return false, fmt.Errorf("contains: left operand must be a string, got %T", left)
		}
		return strings.Contains(ls, fmt.Sprintf("%v", right)), nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func equal(left, right interface{}) bool {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		return math.Abs(lf-rf) < 1e-9
	}
	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			return lb == rb
		}
		// Features encode booleans as 0/1.
		if rf, ok := toFloat64(right); ok {
			return lb == (rf != 0)
		}
		return false
	}
	if rb, ok := right.(bool); ok {
		if lf, ok := toFloat64(left); ok {
			return rb == (lf != 0)
		}
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func numericCompare(op operator, left, right interface{}) (bool, error) {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case opGt:
		return lf > rf, nil
	case opGte:
		return lf >= rf, nil
	case opLt:
		return lf < rf, nil
	case opLte:
		return lf <= rf, nil
	}
	return false, nil
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
