package agent

import (
	"sort"
	"strings"
	"unicode"
)

// maxContextValueChars truncates the raw log message inside the enhanced
// request so one huge traceback does not crowd out the instruction.
const maxContextValueChars = 500

// EnhancedRequest appends contextual fields to the user request. The
// original log message leads, clearly labeled so the model does not
// mistake a summary for the raw line it must search for; remaining
// fields follow with their camelCase keys rendered as titles.
func EnhancedRequest(userRequest string, context map[string]string) string {
	if len(context) == 0 {
		return userRequest
	}

	var parts []string
	if msg := context["logMessage"]; msg != "" {
		if len(msg) > maxContextValueChars {
			msg = msg[:maxContextValueChars] + "..."
		}
		parts = append(parts, "Log Message: "+msg)
	}

	keys := make([]string, 0, len(context))
	for key := range context {
		if key == "logMessage" || context[key] == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, titleCaseKey(key)+": "+context[key])
	}

	if len(parts) == 0 {
		return userRequest
	}
	return userRequest + "\n\nAdditional Context:\n" + strings.Join(parts, "\n")
}

// titleCaseKey renders a camelCase key as spaced title case:
// "logSummary" becomes "Log Summary".
func titleCaseKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
