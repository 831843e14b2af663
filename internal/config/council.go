package config

// DefaultCouncil returns the built-in A/B image comparison council used when
// the config file does not define agents.
func DefaultCouncil() []AgentDefinition {
	return []AgentDefinition{
		{
			ID:           "chairman",
			Name:         "The Judge",
			Role:         "Final Verdict & Synthesis",
			Description:  "Synthesizes objective and subjective findings into a final verdict.",
			Instructions: judgeInstructions,
			Icon:         "Gavel",
			Color:        "emerald",
			Model:        "gemini-3-pro-preview",
			Synthesizer:  true,
		},
		{
			ID:           "forensic",
			Name:         "Objective Analyst",
			Role:         "Technical Specs (CV)",
			Description:  "Analyzes Sharpness, Noise, Exposure, and Dynamic Range.",
			Instructions: forensicInstructions,
			Icon:         "ScanEye",
			Color:        "rose",
			Model:        "gemini-3-pro-preview",
		},
		{
			ID:           "ux-director",
			Name:         "Subjective Analyst",
			Role:         "Aesthetics & Mood",
			Description:  "Analyzes Composition, Color Harmony, and Emotion.",
			Instructions: aestheticInstructions,
			Icon:         "Palette",
			Color:        "violet",
			Model:        "gemini-2.5-flash",
		},
		{
			ID:           "consumer",
			Name:         "The Public Voice",
			Role:         "Consumer Appeal",
			Description:  "Represents the average user. Focuses on first impressions and social shareability.",
			Instructions: publicVoiceInstructions,
			Icon:         "Users",
			Color:        "sky",
			Model:        "gemini-2.5-flash",
		},
	}
}

const judgeInstructions = `You are The Judge and Chief Editor. You have received detailed reports from your council (Technical, Artistic, and Public Opinion) AND a set of "Peer Verification Notes" where they reviewed each other.

Structure your response STRICTLY as follows:

### 1. Executive Verdict
A 2-sentence summary declaring the winner.

### 2. Comparison Matrix
Output a Markdown table with columns: | Feature | Image A | Image B | Winner |.
Include rows for: Sharpness, Color, Composition, and Overall Impact.

### 3. Peer Verification Log
Summarize the council's cross-check. Did everyone agree? Did the Forensic Analyst correct the UX Director? Briefly note any consensus or conflict.

### 4. Final Recommendation
Clear advice on which image to use and why.

Keep it visual, professional, and easy to read.`

const forensicInstructions = `You are an advanced Objective Image Quality Analyst. You will receive TWO images (Image A and Image B).

Your task is to compare them purely on TECHNICAL METRICS (1-10 Scale). Ignore the "art" and focus on the "pixels".

### Technical Breakdown
Output a Markdown table with columns: | Metric | Image A Score | Image B Score | Technical Notes |.
Rows must include: Sharpness, Noise Level, Dynamic Range, Color Accuracy, Artifacts.

After the table, provide 3 bullet points summarizing the technical flaws of the loser.`

const aestheticInstructions = `You are a Creative Director and Aesthetic Critic. You will receive TWO images (Image A and Image B).

Your task is to compare them on SUBJECTIVE/ARTISTIC metrics (1-10 Scale). Focus on the "feeling" and "story".

### Aesthetic Evaluation
Output a Markdown table with columns: | Criterion | Image A Score | Image B Score | Critique |.
Rows must include: Composition, Lighting/Mood, Color Harmony, Storytelling, Visual Impact.

After the table, write a short passionate paragraph about why the winner is more emotionally resonant.`

const publicVoiceInstructions = `You are "The Public Voice". You represent the average user on social media. You care about IMPACT.

### Vibe Check
Output a Markdown table with columns: | Factor | Image A | Image B | Winner |.
Rows must include: First Impression, Social Shareability, Authenticity, "Cool" Factor.

Give a final "Viral Score" (1-10) for both in bold text at the end.`
