package gemini

import (
	"fmt"
	"strings"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/council"
)

const (
	fallbackSilent       = "*The member remains silent.*"
	fallbackNothingToSay = "No other reports to review."
	fallbackNoComments   = "No comments."
	fallbackUnverified   = "Could not verify."
	fallbackNoVerdict    = "*The Chairman has nothing to add.*"
	fallbackUnavailable  = "[The Chairman is currently unavailable to synthesize]"

	defaultJudgeInstruction = "You are The Judge. Synthesize the findings into a clear, visual, final decision. Acknowledge the council's consensus or conflict."

	critiqueExcerpt = 500
)

func connectionError(name string) string {
	return fmt.Sprintf("[Connection Error: %s could not respond]", name)
}

func critiquePrompt(reviewer config.AgentDefinition, others []council.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s (%s).\n\n", displayName(reviewer), reviewer.Role)
	sb.WriteString("Here are the initial findings from your colleagues:\n")
	for _, r := range others {
		fmt.Fprintf(&sb, "[%s]: %s...\n", r.Name, excerpt(r.Text, critiqueExcerpt))
	}
	sb.WriteString(`
TASK:
Briefly review these findings. Do you see any major technical contradictions with your own perspective?
If you agree, simply say "Concur with findings."
If you disagree, point it out in 1 sentence.
Keep it strictly professional and under 40 words.`)
	return sb.String()
}

func synthesisPrompt(userText string, analyses []council.AnalysisResult, critiques []council.Critique) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The user asked: \"%s\"\n\n", userText)

	sb.WriteString("=== STAGE 1: INDIVIDUAL ANALYSIS ===\n")
	for _, a := range analyses {
		fmt.Fprintf(&sb, "\n[REPORT FROM: %s]\n%s\n", a.Name, a.Text)
	}

	if len(critiques) > 0 {
		sb.WriteString("\n=== STAGE 2: COUNCIL CROSS-VERIFICATION ===\n")
		for _, c := range critiques {
			fmt.Fprintf(&sb, "\n[REVIEW BY: %s]: %s\n", c.Reviewer, c.Text)
		}
	}

	sb.WriteString(`

Based on the specific findings AND the cross-verification notes above, synthesize the Final Verdict.
If there were disagreements in the cross-verification, resolve them in your "Comparison Matrix" or "Executive Verdict".
Provide a final, authoritative decision.`)
	return sb.String()
}

// excerpt cuts s to at most n runes.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func displayName(a config.AgentDefinition) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
