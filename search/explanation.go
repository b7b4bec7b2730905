package search

import "fmt"

// Explanation is a recursive score breakdown: a value, what produced it,
// and the child contributions it was combined from.
type Explanation struct {
	Value       float32        `json:"value"`
	Description string         `json:"description"`
	Children    []*Explanation `json:"children,omitempty"`
}

// Explain builds a leaf explanation node.
func Explain(value float32, format string, args ...any) *Explanation {
	return &Explanation{Value: value, Description: fmt.Sprintf(format, args...)}
}

// ExplainSum builds an explanation node whose value is the sum of its
// children's values (used by intersection/union/phrase scorers).
func ExplainSum(description string, children ...*Explanation) *Explanation {
	var sum float32
	for _, c := range children {
		if c != nil {
			sum += c.Value
		}
	}
	return &Explanation{Value: sum, Description: description, Children: children}
}
