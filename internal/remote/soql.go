package remote

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Well-known field names of remote records.
const (
	FieldID               = "Id"
	FieldAttributes       = "attributes"
	FieldType             = "type"
	FieldLastModifiedDate = "LastModifiedDate"
	FieldSystemModstamp   = "SystemModstamp"

	// TypePath is the payload path holding a record's object type.
	TypePath = FieldAttributes + "." + FieldType
)

// TimestampLayout is the wire format of remote timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
}

// FormatTimestamp renders milliseconds since epoch in the remote wire format (UTC).
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a remote timestamp into milliseconds since epoch.
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unparsable timestamp %q", s)
}

var (
	selectPattern = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s+(\w+)(?:\s+where\s+(.+?))?(?:\s+order\s+by\s+.+?)?(?:\s+limit\s+(\d+))?\s*$`)
	andPattern    = regexp.MustCompile(`(?i)\s+and\s+`)
	inPattern     = regexp.MustCompile(`(?is)^(\w+)\s+in\s*\((.*)\)$`)
	cmpPattern    = regexp.MustCompile(`^(\w+)\s*(>=|<=|!=|=|>|<)\s*(.+)$`)
	findPattern   = regexp.MustCompile(`(?is)find\s+\{([^}]*)\}`)
	returnPattern = regexp.MustCompile(`(?is)returning\s+(.+)$`)
	objectPattern = regexp.MustCompile(`(\w+)\s*(?:\(([^)]*)\))?`)
)

type condition struct {
	field  string
	op     string
	values []string
}

type selectQuery struct {
	fields     []string
	objectType string
	conditions []condition
	limit      int
}

// parseSelect understands the subset of SOQL the sync engine emits:
// a field list, one object type, AND-ed comparisons or IN lists, and LIMIT.
func parseSelect(query string) (*selectQuery, error) {
	m := selectPattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("malformed query: %s", query)
	}

	q := &selectQuery{
		fields:     splitList(m[1]),
		objectType: m[2],
	}

	if where := strings.TrimSpace(m[3]); where != "" {
		for _, part := range andPattern.Split(where, -1) {
			cond, err := parseCondition(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			q.conditions = append(q.conditions, cond)
		}
	}

	if m[4] != "" {
		limit, err := strconv.Atoi(m[4])
		if err != nil {
			return nil, fmt.Errorf("invalid limit %q: %w", m[4], err)
		}
		q.limit = limit
	}
	return q, nil
}

func parseCondition(expr string) (condition, error) {
	if m := inPattern.FindStringSubmatch(expr); m != nil {
		values := splitList(m[2])
		for i, v := range values {
			values[i] = unquote(v)
		}
		return condition{field: m[1], op: "in", values: values}, nil
	}
	if m := cmpPattern.FindStringSubmatch(expr); m != nil {
		return condition{field: m[1], op: m[2], values: []string{unquote(strings.TrimSpace(m[3]))}}, nil
	}
	return condition{}, fmt.Errorf("unsupported condition: %s", expr)
}

func (c condition) matches(o *Object) bool {
	value := o.value(c.field)

	if c.op == "in" {
		for _, v := range c.values {
			if compareValue(c.field, value, v) == 0 {
				return true
			}
		}
		return false
	}

	if c.values[0] == "null" {
		isNull := value == nil
		if c.op == "!=" {
			return !isNull
		}
		return c.op == "=" && isNull
	}
	if value == nil {
		return c.op == "!="
	}

	cmp := compareValue(c.field, value, c.values[0])
	switch c.op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

// compareValue orders a record value against a literal: timestamps by instant,
// numbers numerically, everything else as text.
func compareValue(field string, value interface{}, literal string) int {
	if field == FieldSystemModstamp || field == FieldLastModifiedDate {
		if ms, ok := value.(int64); ok {
			if lit, err := ParseTimestamp(literal); err == nil {
				return compareInt(ms, lit)
			}
		}
	}

	switch v := value.(type) {
	case float64:
		if lit, err := strconv.ParseFloat(literal, 64); err == nil {
			return compareFloat(v, lit)
		}
	case int64:
		if lit, err := strconv.ParseFloat(literal, 64); err == nil {
			return compareFloat(float64(v), lit)
		}
	case bool:
		if lit, err := strconv.ParseBool(literal); err == nil {
			if v == lit {
				return 0
			}
			if v {
				return 1
			}
			return -1
		}
	}
	return strings.Compare(fmt.Sprint(value), literal)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type searchQuery struct {
	term    string
	returns map[string][]string
}

// parseSearch understands FIND {term} [IN ALL FIELDS] [RETURNING Type(fields), ...].
func parseSearch(query string) (*searchQuery, error) {
	m := findPattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("malformed search: %s", query)
	}

	s := &searchQuery{term: strings.ToLower(strings.TrimSpace(m[1]))}
	if s.term == "" {
		return nil, fmt.Errorf("search term is empty")
	}

	if r := returnPattern.FindStringSubmatch(query); r != nil {
		s.returns = make(map[string][]string)
		for _, obj := range objectPattern.FindAllStringSubmatch(r[1], -1) {
			s.returns[obj[1]] = splitList(obj[2])
		}
	}
	return s, nil
}

func (s *searchQuery) matches(o *Object) bool {
	if s.returns != nil {
		if _, ok := s.returns[o.Type]; !ok {
			return false
		}
	}
	for _, v := range o.Fields {
		if str, ok := v.(string); ok && strings.Contains(strings.ToLower(str), s.term) {
			return true
		}
	}
	return false
}

func (s *searchQuery) fieldsFor(objectType string) []string {
	if s.returns == nil {
		return nil
	}
	return s.returns[objectType]
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], `\'`, `'`)
	}
	return s
}

// sortObjects orders objects by modification stamp, then id.
func sortObjects(objects []*Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].Modstamp != objects[j].Modstamp {
			return objects[i].Modstamp < objects[j].Modstamp
		}
		return objects[i].ID < objects[j].ID
	})
}
