package options

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ValidationResult contains advisory findings about a finalized query.
//
// Findings never block query generation. They tell the host which parts of
// the Option Model were ignored or look unintended, so it can surface them
// next to the editors.
type ValidationResult struct {
	// OK is true when there are no warnings.
	OK bool

	// Warnings lists the findings in discovery order.
	Warnings []string
}

// BuildError reports why an Option Model cannot be finalized.
type BuildError struct {
	Code    BuildErrorCode
	Field   Field
	Message string
}

// BuildErrorCode categorizes build errors.
type BuildErrorCode string

const (
	// ErrCodeMissingTable indicates no table is selected yet.
	ErrCodeMissingTable BuildErrorCode = "MISSING_TABLE"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMissingTable returns true if err is a BuildError for a missing table.
// Uses errors.As to handle wrapped errors.
func IsMissingTable(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == ErrCodeMissingTable
	}
	return false
}

// Validate inspects a finalized query. It is a pure function.
func Validate(q Query) ValidationResult {
	v := &validator{}
	switch query := q.(type) {
	case *ListQuery:
		v.validateConditions(query.Where)
	case *AggregateQuery:
		v.validateAggregate(query)
		v.validateConditions(query.Where)
	case nil:
		v.addWarning("nil query")
	default:
		v.addWarning("unknown query type: %T", q)
	}
	return ValidationResult{
		OK:       len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateAggregate(q *AggregateQuery) {
	if len(q.Aggregates) == 0 && len(q.GroupBy) == 0 {
		v.addWarning("aggregate mode without aggregates or group by")
	}
	for i, a := range q.Aggregates {
		if !slices.Contains(AggregateFuncs, a.Function) {
			v.addWarning("aggregate %d: unknown function %q", i, a.Function)
		}
		if a.Column == "" && a.Function != AggCount {
			v.addWarning("aggregate %d: %s requires a column", i, a.Function)
		}
	}
}

func (v *validator) validateConditions(conds []Condition) {
	for i, c := range conds {
		switch c.Operator {
		case OpIsNull, OpIsNotNull:
			if len(c.Values) > 0 {
				v.addWarning("filter %d: %s ignores its values", i, c.Operator)
			}
		case OpIn, OpNotIn:
			if len(c.Values) == 0 {
				v.addWarning("filter %d: %s without values", i, c.Operator)
			}
		case OpWithinLast:
			if len(c.Values) != 1 {
				v.addWarning("filter %d: %s takes exactly one duration", i, c.Operator)
			} else if _, err := time.ParseDuration(c.Values[0]); err != nil {
				v.addWarning("filter %d: invalid duration %q", i, c.Values[0])
			}
		case OpEquals, OpNotEquals, OpLess, OpLessEq, OpGreater, OpGreaterEq, OpLike, OpNotLike:
			if len(c.Values) != 1 {
				v.addWarning("filter %d: %s takes exactly one value", i, c.Operator)
			}
		default:
			v.addWarning("filter %d: unknown operator %q", i, c.Operator)
		}
	}
}
