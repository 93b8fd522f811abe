package repository

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// filter collects AND-ed conditions for the query endpoints. Conditions
// use ? placeholders and are rebound to $N on render.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) where(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

// query appends the WHERE clause and tail to base and returns it rebound
// together with the arguments for both.
func (f *filter) query(base, tail string, tailArgs ...any) (string, []any) {
	var b strings.Builder
	b.WriteString(base)
	if len(f.conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(f.conds, " AND "))
	}
	b.WriteString(tail)

	args := make([]any, 0, len(f.args)+len(tailArgs))
	args = append(args, f.args...)
	args = append(args, tailArgs...)
	return sqlx.Rebind(sqlx.DOLLAR, b.String()), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func contains(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
