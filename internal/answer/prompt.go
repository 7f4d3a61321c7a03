package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tom2tomtomtom/Playbook/internal/index"
)

const answerSystemPrompt = `You are a brand guidelines expert assistant. You answer questions about brand playbooks accurately and precisely.

When answering:
1. Base your answer strictly on the provided context from the brand playbook.
2. If the context does not contain the answer, say so clearly.
3. Quote the playbook verbatim when quoting, and name the page.
4. Keep the brand's terminology and tone exactly as the playbook uses them.
5. Finish with a section titled "Follow-up questions:" listing up to 3 short questions the reader might ask next, one per line, each starting with "- ".`

const answerUserTemplate = `Question: %s

Context from the brand playbook:
%s`

const summarySystemPrompt = `You are a brand strategist who summarizes brand playbooks. Use only the provided context and say when a part is not covered.`

const summaryUserTemplate = `Summarize this brand playbook in four parts:
1. Mission and values
2. Visual identity
3. Usage guidelines
4. Unique characteristics

Context from the brand playbook:
%s`

// BuildContext renders passages grouped by page or slide, ascending. Within
// a page passages keep their retrieval order.
func BuildContext(passages []index.SearchResult) string {
	grouped := make(map[int][]index.SearchResult)
	var units []int
	for _, p := range passages {
		if _, ok := grouped[p.SourceUnit]; !ok {
			units = append(units, p.SourceUnit)
		}
		grouped[p.SourceUnit] = append(grouped[p.SourceUnit], p)
	}
	sort.Ints(units)

	var sb strings.Builder
	for i, unit := range units {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n", unit)
		for _, p := range grouped[unit] {
			fmt.Fprintf(&sb, "[%s | relevance %.2f]\n%s\n", p.Type, p.Score, strings.TrimSpace(p.Content))
		}
	}
	return sb.String()
}
