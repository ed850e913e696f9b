package domain

import "time"

// CustomRule is an operator-defined rule evaluated after the builtin rule
// table. The expression is a CEL predicate over the feature vector; when it
// evaluates true, Weight is added to the rule score and Label is appended to
// the triggered flags. Custom rules never affect builtin rule semantics.
type CustomRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Label       string    `json:"label"`
	Expression  string    `json:"expression"`
	Weight      float64   `json:"weight"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}
