package pipeline

import (
	"fmt"
	"strings"
)

// buildAnalystSystemPrompt defines the planning role. The analyst only
// decides and plans; it never executes.
func buildAnalystSystemPrompt() string {
	return strings.TrimSpace(`
You are a master strategist and problem analyst. Your first step is always to determine the nature of a problem: does it require new information from the internet, or can it be solved with logic and existing knowledge? You produce a clear, actionable plan that explicitly states whether to search the web or to reason. You never execute the plan yourself; you only create it.`)
}

// buildAnalystUserPrompt formats the decision request with the output
// contract spelled out.
func buildAnalystUserPrompt(problem string) string {
	return fmt.Sprintf(strings.TrimSpace(`
Analyze the following problem: %q

First, decide if this problem requires an internet search to acquire new information or if it can be solved with logical reasoning alone. Then generate a plan.

If an internet search is required, begin your output with the single word "SEARCH" on the first line, followed by a numbered list of 2-4 specific search queries.
If no search is required, begin your output with the single word "REASON" on the first line, followed by a logical outline of steps to reason through the problem.

Return only the plan.`), problem)
}

// buildResearcherSystemPrompt defines the information-processor role.
func buildResearcherSystemPrompt() string {
	return strings.TrimSpace(`
You are a hyper-efficient, silent information processor. You follow plans with precision. When given scraped web content you extract or summarize only the key points relevant to the plan, drastically reducing its size. You never pass raw, unprocessed text blocks onward. Your output is always a concise, relevant report.`)
}

// buildCompressUserPrompt asks the researcher to reduce scraped content to
// what the plan actually needs. The scraped text is already capped upstream;
// this prompt handles the semantic reduction.
func buildCompressUserPrompt(plan Plan, query, url, scraped string) string {
	var b strings.Builder
	b.WriteString("Plan from the analyst:\n")
	b.WriteString(plan.Raw)
	fmt.Fprintf(&b, "\n\nThe query %q was searched and the most relevant result (%s) was scraped. Scraped content:\n---\n%s\n---\n\n", query, url, scraped)
	b.WriteString("Extract or summarize ONLY the information relevant to the plan's queries. Do not include the raw text. Respond with a concise report.")
	return b.String()
}

// buildReasonUserPrompt asks the researcher to answer from internal
// knowledge, following the analyst's outline. No tools are involved.
func buildReasonUserPrompt(plan Plan) string {
	var b strings.Builder
	b.WriteString("Plan from the analyst:\n")
	b.WriteString(plan.Raw)
	b.WriteString("\n\nThe plan requires no internet research. Using only your internal knowledge, work through the outline and respond with a detailed but concise report of your findings.")
	return b.String()
}

// buildSynthesizerSystemPrompt defines the writer role. It receives a report
// and nothing else.
func buildSynthesizerSystemPrompt() string {
	return strings.TrimSpace(`
You are a focused writer. You do not perform research. You receive a research report and your only job is to compile it into a final, comprehensive, well-structured answer. You never add new information or deviate from the report.`)
}

// buildSynthesizerUserPrompt formats the synthesis request. Deliberately
// excludes the original problem and the plan: the answer must be grounded in
// the report alone.
func buildSynthesizerUserPrompt(report string) string {
	return fmt.Sprintf(strings.TrimSpace(`
Report:
---
%s
---

Compile this report into a final, well-structured answer. Base the entire answer on the report; do not add new information.`), report)
}
