package retrieval

import (
	"fmt"
	"strings"
)

// FormatContext renders a query response as the markdown block injected
// into solution prompts. Empty results render a short no-match notice so
// the model knows the knowledge base was consulted.
func FormatContext(resp *QueryResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return "No matching solutions found in knowledge base."
	}

	var b strings.Builder
	b.WriteString("## Relevant Error Solutions from Knowledge Base\n\n")

	for i, result := range resp.Results {
		entry := result.Entry
		fmt.Fprintf(&b, "### Error %d: %s\n", i+1, entry.Title)
		fmt.Fprintf(&b, "**Confidence Score:** %.2f\n\n", result.Score)

		if entry.Description != "" {
			b.WriteString("**Description:**\n")
			b.WriteString(entry.Description)
			b.WriteString("\n\n")
		}
		if entry.Symptoms != "" {
			b.WriteString("**Symptoms:**\n")
			b.WriteString(entry.Symptoms)
			b.WriteString("\n\n")
		}
		if entry.Resolution != "" {
			b.WriteString("**Resolution:**\n")
			b.WriteString(entry.Resolution)
			b.WriteString("\n\n")
		}
		if entry.Code != "" {
			b.WriteString("**Code Example:**\n")
			fmt.Fprintf(&b, "```\n%s\n```\n\n", entry.Code)
		}

		b.WriteString("---\n\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
