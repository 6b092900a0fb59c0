package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/intentd/store"
)

// BuildPrompt renders the classification prompt: one line per active
// category ordered by priority descending, a fixed instruction block, and
// the sentinel contract for "no category fits".
func BuildPrompt(text string, categories []*store.IntentCategory) string {
	sorted := make([]*store.IntentCategory, len(categories))
	copy(sorted, categories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	var lines []string
	for _, c := range sorted {
		lines = append(lines, fmt.Sprintf("- %s: %s (描述: %s)", c.Code, c.Name, c.Description))
	}

	return fmt.Sprintf(`Classify the following user input into one of these intent categories.

Available categories:
%s

User input: "%s"

Examples:
- Input: "查找零件A123" → Output: {"intent": "part.search", "confidence": 0.95}
- Input: "找一个螺栓" → Output: {"intent": "part.search", "confidence": 0.95}
- Input: "创建新零件" → Output: {"intent": "part.create", "confidence": 0.95}
- Input: "查询BOM结构" → Output: {"intent": "bom.query", "confidence": 0.95}

Respond ONLY with a JSON object in this exact format:
{"intent": "category_code", "confidence": 0.95}

Choose the most appropriate category based on the user's intent.
If none of the categories match, respond with:
{"intent": "LLM无法匹配", "confidence": 0.0}`, strings.Join(lines, "\n"), text)
}
