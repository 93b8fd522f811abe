package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// queryParams parses optional query string values. The first bad value
// is kept in err and later lookups become no-ops.
type queryParams struct {
	values url.Values
	err    error
}

func newQueryParams(values url.Values) *queryParams {
	return &queryParams{values: values}
}

func (q *queryParams) string(key string) string {
	return q.values.Get(key)
}

// time accepts RFC 3339 or a plain date. A plain date is the start of that
// UTC day, or its last instant when endOfDay is set.
func (q *queryParams) time(key string, endOfDay bool) *time.Time {
	v := q.values.Get(key)
	if v == "" || q.err != nil {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		q.err = fmt.Errorf("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", key)
		return nil
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}

func (q *queryParams) int64(key string) *int64 {
	v := q.values.Get(key)
	if v == "" || q.err != nil {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		q.err = fmt.Errorf("%s must be an integer", key)
		return nil
	}
	return &n
}

func (q *queryParams) int(key string) int {
	n := q.int64(key)
	if n == nil {
		return 0
	}
	return int(*n)
}

func (q *queryParams) bool(key string) bool {
	v := q.values.Get(key)
	if v == "" || q.err != nil {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.err = fmt.Errorf("%s must be true or false", key)
		return false
	}
	return b
}
