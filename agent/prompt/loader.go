package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/intent.txt
	intentRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Intent string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Intent: strings.TrimSpace(intentRaw),
	}
}
