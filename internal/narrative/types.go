package narrative

// Usage counts the tokens of one remote call. Cached counts the prompt
// tokens served from the provider's prompt cache and is a subset of Input.
type Usage struct {
	Input  int `json:"input_tokens"`
	Cached int `json:"cached_tokens"`
	Output int `json:"output_tokens"`
}

// Add accumulates another call's usage.
func (u *Usage) Add(o Usage) {
	u.Input += o.Input
	u.Cached += o.Cached
	u.Output += o.Output
}

// Meta is the envelope shared by every cached artifact.
type Meta struct {
	Date        string  `json:"date"`
	RunID       string  `json:"run_id"`
	Model       string  `json:"model"`
	GeneratedAt string  `json:"generated_at"`
	Usage       Usage   `json:"usage"`
	CostUSD     float64 `json:"cost_usd"`
}

// HourNarrative is the model's reading of one wall-clock hour.
type HourNarrative struct {
	HourStartTS string `json:"hour_start_ts"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
}

// HourArtifact caches the per-hour narrative call for one run.
type HourArtifact struct {
	Meta
	Hours []HourNarrative `json:"hours"`
}

// Hour returns the narrative for an hour start timestamp, or nil.
func (a *HourArtifact) Hour(startTS string) *HourNarrative {
	if a == nil {
		return nil
	}
	for i := range a.Hours {
		if a.Hours[i].HourStartTS == startTS {
			return &a.Hours[i]
		}
	}
	return nil
}

// DayArtifact caches the whole-day rollup narrative.
type DayArtifact struct {
	Meta
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights,omitempty"`
}

// EnrichArtifact caches the context-aware re-interpretation pass. Entries are
// additive: the base hour narrative is never replaced.
type EnrichArtifact struct {
	Meta
	Hours []HourNarrative `json:"hours"`
}

// Hour returns the enriched narrative for an hour start timestamp, or nil.
func (a *EnrichArtifact) Hour(startTS string) *HourNarrative {
	if a == nil {
		return nil
	}
	for i := range a.Hours {
		if a.Hours[i].HourStartTS == startTS {
			return &a.Hours[i]
		}
	}
	return nil
}

// SegmentNarrative is the model's one-line reading of a work segment.
type SegmentNarrative struct {
	SegmentID int    `json:"segment_id"`
	Label     string `json:"label"`
	Summary   string `json:"summary"`
}

// SegmentArtifact caches the optional per-segment narrative call.
type SegmentArtifact struct {
	Meta
	Segments []SegmentNarrative `json:"segments"`
}

// API request/response types for OpenAI-compatible chat completions.

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *usageJSON   `json:"usage,omitempty"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type respFormat struct {
	Type string `json:"type"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type usageJSON struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	PromptDetails    *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
}

// LLM content payloads.

type hourJSON struct {
	Hours []HourNarrative `json:"hours"`
}

type dayJSON struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}

type enrichJSON struct {
	Hours []HourNarrative `json:"hours"`
}

type segmentsJSON struct {
	Segments []SegmentNarrative `json:"segments"`
}
