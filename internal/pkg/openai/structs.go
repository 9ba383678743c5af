package openai

// Score is the model's directional call on the company's trajectory.
type Score struct {
	Direction      string  `json:"direction"`  // up, down, flat
	Magnitude      float64 `json:"magnitude"`  // 0-100
	Confidence     float64 `json:"confidence"` // 0.0-1.0
	RationaleShort string  `json:"rationale_short"`
}

// Assessment is the structured output for one company. ROETrend is
// computed locally, not by the model.
type Assessment struct {
	Summary   string        `json:"summary"`
	Strengths []string      `json:"strengths"`
	Risks     []string      `json:"risks"`
	Score     Score         `json:"score"`
	ROETrend  *TrendMetrics `json:"roe_trend,omitempty"`
}
