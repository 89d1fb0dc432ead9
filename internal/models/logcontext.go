package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseLogTimestamp parses a log-store timestamp, which is usually unix
// nanoseconds but may also be RFC3339. Unparseable values collapse to the
// epoch so sorting stays total.
func ParseLogTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Unix(0, 0)
	}
	if ns, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.Unix(0, ns)
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t
	}
	return time.Unix(0, 0)
}

// BuildContext renders the retrieved log lines as a prompt-ready text
// block: entries grouped by label set, each group sorted chronologically.
func (r *ToolResult) BuildContext() string {
	if len(r.Logs) == 0 {
		return ""
	}

	groups := make(map[string][]LogEntry)
	for _, e := range r.Logs {
		groups[labelsKey(e.Labels)] = append(groups[labelsKey(e.Labels)], e)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		entries := groups[key]
		sort.SliceStable(entries, func(i, j int) bool {
			return ParseLogTimestamp(entries[i].Timestamp).Before(ParseLogTimestamp(entries[j].Timestamp))
		})

		b.WriteString("\n" + strings.Repeat("=", 80) + "\n")
		b.WriteString("Labels: " + key + "\n")
		b.WriteString(strings.Repeat("=", 80) + "\n")
		for _, e := range entries {
			ts := ParseLogTimestamp(e.Timestamp).Format("2006-01-02 15:04:05")
			b.WriteString(ts + " - " + e.Message + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func labelsKey(labels map[string]string) string {
	if len(labels) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if v == "" {
			continue
		}
		keys = append(keys, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
