package httpapi

import (
	"strconv"
	"strings"
	"time"
)

const maxContentLength = 200000
const maxPageSize = 100

// validArticleID mirrors original_source/src/utils.py::validate_article_id:
// any non-empty, non-whitespace string.
func validArticleID(id string) bool {
	return strings.TrimSpace(id) != ""
}

// validClusterID mirrors original_source/src/utils.py::validate_cluster_id.
func validClusterID(id string) bool {
	return strings.HasPrefix(id, "cluster_") && len(id) > len("cluster_")
}

var validSortFields = map[string]bool{
	"publish_time": true,
	"created_at":   true,
	"updated_at":   true,
}

// parseSort splits a "field:asc|desc" spec. An empty spec yields the spec's
// default (publish_time:desc). ok is false on anything unrecognized.
func parseSort(spec string) (field, order string, ok bool) {
	if spec == "" {
		return "publish_time", "desc", true
	}
	parts := strings.SplitN(spec, ":", 2)
	field = parts[0]
	order = "desc"
	if len(parts) == 2 {
		order = parts[1]
	}
	if !validSortFields[field] {
		return "", "", false
	}
	if order != "asc" && order != "desc" {
		return "", "", false
	}
	return field, order, true
}

func parseIntParam(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseEnumParam(s string, min, max int) (*int, bool) {
	if s == "" {
		return nil, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return nil, false
	}
	return &n, true
}

func parseTimeParam(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
