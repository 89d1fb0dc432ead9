package diagnose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/logtriage/logtriage-ai/internal/models"
)

// systemPrompt is shared by every generation step. Keeping one persona
// across summary, classification and solution keeps the outputs coherent
// when they are concatenated into a report.
const systemPrompt = "You are an Ansible expert and helpful assistant."

const summarizePrompt = `Summarize the following Ansible failure log in two or three sentences.
Name the failing task or module, the host it failed on if present, and the
direct cause of the failure. Do not speculate beyond what the log shows and
do not propose a fix.

Log:
%s`

const classifyPrompt = `Decide which expert team should own the following failure summary.
Respond with exactly one of these categories, copied verbatim:

%s

Summary:
%s`

const routeSolutionPrompt = `You are deciding whether the information below is enough to write a
concrete remediation, or whether more context from the live log store is
needed first (for example the lines leading up to the failure, or related
errors from the same host).

Classify as "sufficient_context" when the summary and the original log
already pin down the cause well enough to act on. Classify as
"needs_more_context" when the failure is ambiguous without surrounding
log lines.

Summary:
%s

Original log:
%s`

const routeLiveLogsPrompt = `Knowledge-base context for a failure is shown below. Decide whether the
live log store still needs to be queried, or whether this context plus the
summary is enough to write a remediation.

Classify as "need_more_context_from_logs" only when a specific question
remains that live log lines could answer. Otherwise classify as
"no_need_more_context_from_logs".

Summary:
%s

Knowledge-base context:
%s`

const identifyMissingPrompt = `A remediation is about to be written for the failure summarized below, but
more context is needed from the live log store. State, in one or two plain
sentences, exactly what log data should be fetched: which file or host,
what text to look for, or which lines around the failure. Be concrete
enough that a query can be built from your request alone.

Summary:
%s%s`

const solvePrompt = `Write a step-by-step remediation for the following Ansible failure.
Number the steps. Each step must be a concrete action an engineer can
take: a command to run, a file to edit, a setting to change. Start from
verifying the diagnosis and end with confirming the fix. Where the
provided context contains a documented resolution, prefer it over
guessing.

Summary:
%s

Original log:
%s%s`

// Structured-output decision literals. The router steps return these
// through a closed enum so a free-text answer can never steer control flow.
const (
	routeSufficient   = "sufficient_context"
	routeNeedsContext = "needs_more_context"

	liveLogsNeeded    = "need_more_context_from_logs"
	liveLogsNotNeeded = "no_need_more_context_from_logs"
)

func categoriesList() string {
	var b strings.Builder
	for _, c := range models.ExpertCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func labelsBlock(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nKnown labels:\n")
	for _, k := range sortedKeys(labels) {
		fmt.Fprintf(&b, "%s: %s\n", k, labels[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func contextBlock(context string) string {
	if context == "" {
		return ""
	}
	return "\n\nContext:\n" + context
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
