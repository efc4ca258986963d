package vector

import "fmt"

// ConditionOp is the comparison operator of a filter condition.
type ConditionOp int

// ConditionOp values.
const (
	OpEq ConditionOp = iota
	OpGte
	OpLte
)

// Condition is one payload comparison. Conditions on the same field
// combine, so Gte+Lte express a closed range.
type Condition struct {
	field string
	op    ConditionOp
	value any
}

// Field returns the payload field the condition applies to.
func (c Condition) Field() string { return c.field }

// Op returns the comparison operator.
func (c Condition) Op() ConditionOp { return c.op }

// Value returns the comparison operand.
func (c Condition) Value() any { return c.value }

// Filter is a conjunction of payload conditions. The zero value matches
// everything.
type Filter struct {
	conditions []Condition
}

// NewFilter creates an empty Filter.
func NewFilter() Filter { return Filter{} }

// Eq returns a copy with an equality condition appended.
func (f Filter) Eq(field string, value any) Filter {
	f.conditions = append(cloneConditions(f.conditions), Condition{field: field, op: OpEq, value: value})
	return f
}

// Gte returns a copy with a lower-bound condition appended.
func (f Filter) Gte(field string, value float64) Filter {
	f.conditions = append(cloneConditions(f.conditions), Condition{field: field, op: OpGte, value: value})
	return f
}

// Lte returns a copy with an upper-bound condition appended.
func (f Filter) Lte(field string, value float64) Filter {
	f.conditions = append(cloneConditions(f.conditions), Condition{field: field, op: OpLte, value: value})
	return f
}

// Conditions returns a copy of the filter's conditions.
func (f Filter) Conditions() []Condition { return cloneConditions(f.conditions) }

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool { return len(f.conditions) == 0 }

// Fields returns the distinct payload fields the filter touches.
func (f Filter) Fields() []string {
	seen := make(map[string]struct{}, len(f.conditions))
	fields := make([]string, 0, len(f.conditions))
	for _, c := range f.conditions {
		if _, ok := seen[c.field]; ok {
			continue
		}
		seen[c.field] = struct{}{}
		fields = append(fields, c.field)
	}
	return fields
}

// Validate checks every filtered field against the schema's declared
// payload indexes. Filtering on an undeclared field is a configuration
// error, never a silent no-op.
func (f Filter) Validate(schema CollectionSchema) error {
	for _, field := range f.Fields() {
		if !schema.IndexedField(field) {
			return fmt.Errorf("%w: %q is not indexed on collection %q", ErrUnindexedField, field, schema.Name())
		}
	}
	return nil
}

// Match evaluates the filter against a payload. Used by backends that
// filter in process and by tests as the reference semantics.
func (f Filter) Match(payload Payload) bool {
	for _, c := range f.conditions {
		value, ok := payload[c.field]
		if !ok {
			return false
		}
		switch c.op {
		case OpEq:
			if !equalValues(value, c.value) {
				return false
			}
		case OpGte:
			num, ok := asFloat(value)
			if !ok || num < c.value.(float64) {
				return false
			}
		case OpLte:
			num, ok := asFloat(value)
			if !ok || num > c.value.(float64) {
				return false
			}
		}
	}
	return true
}

func cloneConditions(conditions []Condition) []Condition {
	return append([]Condition(nil), conditions...)
}

// equalValues compares payload values loosely enough to survive a JSON
// round trip, where ints come back as float64.
func equalValues(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
