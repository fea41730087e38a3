package domain

import (
	"fmt"
	"sort"
	"strconv"
)

// RunContext carries the optional pipeline context attached to a review.
// The field set is fixed; unrecognized keys from an inbound map are reported
// to the caller instead of being carried along silently.
type RunContext struct {
	RunID          string   `json:"run_id,omitempty"`
	StackID        string   `json:"stack_id,omitempty"`
	PreviousStatus string   `json:"previous_status,omitempty"`
	ChangedFiles   []string `json:"changed_files,omitempty"`
	CommitSHA      string   `json:"commit_sha,omitempty"`
	Branch         string   `json:"branch,omitempty"`
}

// IsZero reports whether no context field is set.
func (c RunContext) IsZero() bool {
	return c.RunID == "" && c.StackID == "" && c.PreviousStatus == "" &&
		len(c.ChangedFiles) == 0 && c.CommitSHA == "" && c.Branch == ""
}

// RunContextFromMap builds a RunContext from a loosely typed map, returning
// the sorted list of keys it did not recognize.
func RunContextFromMap(m map[string]any) (RunContext, []string) {
	var rc RunContext
	var unknown []string

	for key, value := range m {
		switch key {
		case "run_id":
			rc.RunID = asString(value)
		case "stack_id":
			rc.StackID = asString(value)
		case "previous_status":
			rc.PreviousStatus = asString(value)
		case "changed_files":
			rc.ChangedFiles = asStringSlice(value)
		case "commit_sha":
			rc.CommitSHA = asString(value)
		case "branch":
			rc.Branch = asString(value)
		default:
			unknown = append(unknown, key)
		}
	}

	sort.Strings(unknown)
	return rc, unknown
}

// Map renders the context as a string-keyed map with only the set fields,
// suitable for persistence alongside the review record.
func (c RunContext) Map() map[string]any {
	m := make(map[string]any)
	if c.RunID != "" {
		m["run_id"] = c.RunID
	}
	if c.StackID != "" {
		m["stack_id"] = c.StackID
	}
	if c.PreviousStatus != "" {
		m["previous_status"] = c.PreviousStatus
	}
	if len(c.ChangedFiles) > 0 {
		m["changed_files"] = c.ChangedFiles
	}
	if c.CommitSHA != "" {
		m["commit_sha"] = c.CommitSHA
	}
	if c.Branch != "" {
		m["branch"] = c.Branch
	}
	return m
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, asString(item))
		}
		return out
	default:
		return nil
	}
}

func versionID(reviewID string, version int) string {
	return fmt.Sprintf("%s#VERSION#%d", reviewID, version)
}
