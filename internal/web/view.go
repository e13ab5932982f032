package web

import (
	"github.com/straja-ai/intakerisk/internal/assessment"
)

// badge is the styling for one level or recommendation value.
type badge struct {
	Class string
	Icon  string
	Label string
}

// levelBadge styles the four known levels. Anything else keeps its text
// under a neutral class.
func levelBadge(level string) badge {
	b := badge{Label: level + " RISK"}
	switch level {
	case assessment.LevelCritical:
		b.Class, b.Icon = "level-critical", "🔴"
	case assessment.LevelHigh:
		b.Class, b.Icon = "level-high", "🟠"
	case assessment.LevelMedium:
		b.Class, b.Icon = "level-medium", "🟡"
	case assessment.LevelLow:
		b.Class, b.Icon = "level-low", "🟢"
	default:
		b.Class = "level-unknown"
	}
	return b
}

func recommendationBadge(rec string) badge {
	switch rec {
	case assessment.RecommendDecline:
		return badge{Class: "rec-decline", Icon: "❌", Label: "DECLINE"}
	case assessment.RecommendAcceptConditions:
		return badge{Class: "rec-conditions", Icon: "⚠️", Label: "ACCEPT WITH CONDITIONS"}
	case assessment.RecommendAccept:
		return badge{Class: "rec-accept", Icon: "✅", Label: "ACCEPT"}
	default:
		return badge{Class: "rec-unknown", Label: rec}
	}
}

type resultView struct {
	Score          string
	Level          badge
	Recommendation badge
	Summary        string
	Risks          []string
}

func newResultView(r assessment.Result) resultView {
	return resultView{
		Score:          r.ScoreText(),
		Level:          levelBadge(r.Level),
		Recommendation: recommendationBadge(r.Recommendation),
		Summary:        r.Summary,
		Risks:          r.Risks,
	}
}

type capturePage struct {
	Intake      string
	Prompt      string
	BlankPrompt string
}

// handoffPage hands the intake text to the browser's storage on the way to
// the results page.
type handoffPage struct {
	Intake string
}

type errorView struct {
	Message string
}
