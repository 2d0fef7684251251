package common

import (
	"fmt"
	"strings"
)

// StringArg returns args[key] as a trimmed string. Non-string values are
// formatted with %v so numbers passed by lenient clients still read.
func StringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

// CalendarCount returns how many calendars the calendars argument names,
// whether it came as a comma-separated string or a list.
func CalendarCount(args map[string]any) int {
	switch v := args["calendars"].(type) {
	case string:
		n := 0
		for _, name := range strings.Split(v, ",") {
			if strings.TrimSpace(name) != "" {
				n++
			}
		}
		return n
	case []any:
		return len(v)
	case []string:
		return len(v)
	}
	return 0
}

// SearchText returns the free-text part of a request: the search term or
// the query filter.
func SearchText(args map[string]any) string {
	if term := StringArg(args, "term"); term != "" {
		return term
	}
	return StringArg(args, "query")
}
