package domain

import "context"

// RuleView provides read-only access to timetable entities for rule evaluation.
type RuleView interface {
	ListSchools() []School
	ListClassrooms() []Classroom
	ListLectures() []Lecture
	FindSchool(id int) (School, bool)
	FindClassroom(id int) (Classroom, bool)
	FindLecture(id int) (Lecture, bool)
	Calendar() Calendar
}

// Rule defines an evaluation executed against a proposed mutation.
// The view reflects the state before the change; changes carry the proposed records.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate executes registered rules in order and aggregates their results.
// Evaluation stops after the first rule that reports a blocking violation.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
		if res.HasBlocking() {
			break
		}
	}
	return combined, nil
}
