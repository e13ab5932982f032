package assessment

import (
	"fmt"
	"strings"

	"github.com/straja-ai/intakerisk/internal/inference"
)

// RiskFactor is one line of the scoring guide given to the model.
type RiskFactor struct {
	Description string
	Points      int
}

// Rubric is advisory: the model is asked to add these up, nothing here
// re-derives or checks the score it returns.
var Rubric = []RiskFactor{
	{Description: "Aggressive/violent behavior", Points: 25},
	{Description: "Dementia/Alzheimer's", Points: 25},
	{Description: "Falls history", Points: 15},
	{Description: "Lives alone", Points: 15},
	{Description: "10+ medications", Points: 15},
	{Description: "24-hour care needed", Points: 20},
	{Description: "Wandering/elopement risk", Points: 15},
	{Description: "Recent hospitalization", Points: 10},
}

const systemPreamble = `You are a healthcare intake risk analyst. Analyze client intake information and return ONLY a valid JSON object (no markdown, no code blocks, no extra text) with these exact fields:
{
  "score": <number 0-100>,
  "level": "<LOW|MEDIUM|HIGH|CRITICAL>",
  "risks": ["<risk1>", "<risk2>", ...],
  "summary": "<2-3 sentence summary>",
  "recommendation": "<ACCEPT|ACCEPT_WITH_CONDITIONS|DECLINE>"
}`

const userPreamble = "Analyze this client intake and return the JSON assessment:\n\n"

// SystemPrompt renders the fixed system instruction including the rubric.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nScoring guide:\n")
	for _, f := range Rubric {
		fmt.Fprintf(&b, "- %s: +%d\n", f.Description, f.Points)
	}
	b.WriteString("\nIMPORTANT: Return ONLY the JSON object, nothing else.")
	return b.String()
}

// UserPrompt embeds the intake text verbatim.
func UserPrompt(intakeText string) string {
	return userPreamble + intakeText
}

// BuildRequest assembles the two-message completion request.
func BuildRequest(model string, temperature float64, intakeText string) *inference.Request {
	return &inference.Request{
		Model: model,
		Messages: []inference.Message{
			{Role: inference.RoleSystem, Content: SystemPrompt()},
			{Role: inference.RoleUser, Content: UserPrompt(intakeText)},
		},
		Temperature: temperature,
	}
}
