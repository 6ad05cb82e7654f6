package locator

import (
	"fmt"
	"strings"
)

const promptTemplate = `Analyze the screenshot and find the following UI element(s):

%s

Answer in JSON. For each element give:
1. element_type: the element type (button, menu, text_field, tree, dialog, ...)
2. description: a short description of the element. Never use double quotes inside it; wrap file names in single quotes.
3. bbox: the bounding box [x1, y1, x2, y2] in screenshot pixel coordinates
4. confidence: your confidence between 0 and 1

Return only the JSON array and nothing else.`

// BuildPrompt wraps a caller's element description in the locate instructions.
func BuildPrompt(description string) string {
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(description))
}
