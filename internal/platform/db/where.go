package db

import (
	"fmt"
	"strings"
)

// Where accumulates AND-ed predicates and their positional arguments. Each
// "?" in an expression becomes the placeholder of the argument passed with
// it, so one argument may be referenced more than once.
type Where struct {
	clauses []string
	args    []interface{}
}

func (w *Where) Add(expr string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(expr, "?", fmt.Sprintf("$%d", len(w.args))))
}

// AddRaw appends a predicate that takes no argument.
func (w *Where) AddRaw(expr string) {
	w.clauses = append(w.clauses, expr)
}

// Arg registers an argument that is not part of a predicate (SET values,
// LIMIT, OFFSET) and returns its placeholder.
func (w *Where) Arg(arg interface{}) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *Where) Args() []interface{} { return w.args }

// SQL renders " WHERE a AND b", or "" when empty.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
