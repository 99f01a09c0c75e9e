package aiclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ─── Result Types ───────────────────────────────────────────────────────────

// AnalysisResult is a scored read of a conversation.
type AnalysisResult struct {
	OverallScore int              `json:"overall_score"`
	Summary      string           `json:"summary"`
	Dimensions   []DimensionScore `json:"dimensions"`
	Flags        []RiskFlag       `json:"flags"`
	Advice       string           `json:"advice"`
}

// DimensionScore rates one aspect of the conversation from 0 to 100.
type DimensionScore struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// RiskFlag marks a concerning pattern. Type is red, yellow, or green.
type RiskFlag struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ReplyOptions holds three tones of suggested replies.
type ReplyOptions struct {
	Cold  []string `json:"cold_replies"`
	Sweet []string `json:"sweet_replies"`
	Drama []string `json:"drama_replies"`
}

// OracleResult is a hexagram reading.
type OracleResult struct {
	HexagramName   string `json:"hexagram_name"`
	HexagramSymbol string `json:"hexagram_symbol"`
	HexagramText   string `json:"hexagram_text"`
	Interpretation string `json:"interpretation"`
	Advice         string `json:"advice"`
}

// ─── Tolerant Parsing ───────────────────────────────────────────────────────
//
// The model is told to answer with bare JSON but routinely wraps it in
// prose or code fences. Each parser extracts the outermost object, decodes
// it loosely, and fills every missing field with a stable default rather
// than failing the whole request.

var defaultDimensions = []string{
	"response speed",
	"attentiveness",
	"promise keeping",
	"emotional stability",
	"flirtation",
	"sincerity",
	"time investment",
}

const (
	defaultScore   = 50
	defaultSummary = "analysis pending"
	defaultAdvice  = "Take this relationship at face value and look after yourself first."
	defaultComment = "analysis pending"
)

// extractJSON returns the span from the first '{' to the last '}', or the
// input unchanged when no such span exists.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

func decodeObject(content string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(extractJSON(content)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// parseAnalysis never fails: undecodable content becomes a placeholder
// result carrying the raw text as its summary.
func parseAnalysis(content string) *AnalysisResult {
	obj, ok := decodeObject(content)
	if !ok {
		result := &AnalysisResult{
			OverallScore: defaultScore,
			Summary:      strings.TrimSpace(content),
			Advice:       defaultAdvice,
		}
		if result.Summary == "" {
			result.Summary = defaultSummary
		}
		result.Dimensions = placeholderDimensions()
		return result
	}

	result := &AnalysisResult{
		OverallScore: intField(obj, "overall_score", defaultScore),
		Summary:      stringField(obj, "summary", defaultSummary),
		Advice:       stringField(obj, "advice", defaultAdvice),
	}

	if dims, ok := obj["dimensions"].([]any); ok {
		for _, d := range dims {
			dim, ok := d.(map[string]any)
			if !ok {
				continue
			}
			name, nameOK := dim["name"].(string)
			score, scoreOK := dim["score"].(float64)
			comment, commentOK := dim["comment"].(string)
			if nameOK && scoreOK && commentOK {
				result.Dimensions = append(result.Dimensions, DimensionScore{Name: name, Score: score, Comment: comment})
			}
		}
	}
	if len(result.Dimensions) == 0 {
		result.Dimensions = placeholderDimensions()
	}

	if flags, ok := obj["flags"].([]any); ok {
		for _, f := range flags {
			flag, ok := f.(map[string]any)
			if !ok {
				continue
			}
			typ, typOK := flag["type"].(string)
			desc, descOK := flag["description"].(string)
			if typOK && descOK {
				result.Flags = append(result.Flags, RiskFlag{Type: normalizeFlag(typ), Description: desc})
			}
		}
	}

	return result
}

// parseReplies fails on undecodable content: a reply screen with no replies
// is worse than an error the caller can retry.
func parseReplies(content string) (*ReplyOptions, error) {
	obj, ok := decodeObject(content)
	if !ok {
		return nil, fmt.Errorf("reply response is not valid JSON")
	}
	return &ReplyOptions{
		Cold:  stringList(obj, "cold_replies", []string{"Busy.", "Did you need something?"}),
		Sweet: stringList(obj, "sweet_replies", []string{"I was just thinking about you~", "Just got back, what's up?"}),
		Drama: stringList(obj, "drama_replies", []string{"Are you checking up on me?", "Could you at least vary the opening line?"}),
	}, nil
}

// parseOracle never fails: undecodable content becomes the fallback reading
// with the raw text as its interpretation.
func parseOracle(content string) *OracleResult {
	result := &OracleResult{
		HexagramName:   "Heaven over Wind",
		HexagramSymbol: "☰☴",
		HexagramText:   "Coupling: the encounter is strong, yet not one to hold onto.",
		Interpretation: "The reading is unsettled.",
		Advice:         "Letting go can be the kindest thing you do for yourself.",
	}

	obj, ok := decodeObject(content)
	if !ok {
		if text := strings.TrimSpace(content); text != "" {
			result.Interpretation = text
		}
		return result
	}

	result.HexagramName = stringField(obj, "hexagram_name", result.HexagramName)
	result.HexagramSymbol = stringField(obj, "hexagram_symbol", result.HexagramSymbol)
	result.HexagramText = stringField(obj, "hexagram_text", result.HexagramText)
	result.Interpretation = stringField(obj, "interpretation", result.Interpretation)
	result.Advice = stringField(obj, "advice", result.Advice)
	return result
}

// ─── Field Helpers ──────────────────────────────────────────────────────────

func placeholderDimensions() []DimensionScore {
	dims := make([]DimensionScore, len(defaultDimensions))
	for i, name := range defaultDimensions {
		dims[i] = DimensionScore{Name: name, Score: defaultScore, Comment: defaultComment}
	}
	return dims
}

func normalizeFlag(typ string) string {
	switch typ {
	case "red", "yellow":
		return typ
	default:
		return "green"
	}
}

func stringField(obj map[string]any, key, fallback string) string {
	if s, ok := obj[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func intField(obj map[string]any, key string, fallback int) int {
	if f, ok := obj[key].(float64); ok {
		return int(f)
	}
	return fallback
}

func stringList(obj map[string]any, key string, fallback []string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return fallback
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// ─── Prompts ────────────────────────────────────────────────────────────────

const analysisPrompt = `You are a relationship coach with a decade of
counselling experience, sharp-tongued but fair. Examine the attached chat
screenshot and rate the other party across seven dimensions, each 0-100:
response speed, attentiveness, promise keeping, emotional stability,
flirtation, sincerity, and time investment. Watch for manipulative
phrasing, vague promises, and hot-and-cold patterns.

Answer strictly as JSON with no surrounding text, using this shape:
{"overall_score": 45, "summary": "...", "dimensions": [{"name": "...",
"score": 80, "comment": "..."}], "flags": [{"type": "red", "description":
"..."}], "advice": "..."}
Flag types are red, yellow, or green.`

func replyPrompt(message string) string {
	return fmt.Sprintf(`You ghostwrite chat replies. For the incoming message
below, propose three tones of response, two to three options each: cold
(distant, minimal), sweet (warm, affectionate), and drama (playfully
confrontational).

Answer strictly as JSON with no surrounding text:
{"cold_replies": ["..."], "sweet_replies": ["..."], "drama_replies": ["..."]}

Incoming message: %s`, message)
}

func oraclePrompt(question string) string {
	prompt := `You are a hexagram diviner reading a relationship from the
attached chat screenshot. Cast a hexagram and interpret what it says about
where this connection is heading, in a wry but compassionate voice.

Answer strictly as JSON with no surrounding text:
{"hexagram_name": "...", "hexagram_symbol": "...", "hexagram_text": "...",
"interpretation": "...", "advice": "..."}`
	if question != "" {
		prompt += "\n\nThe seeker asks: " + question
	}
	return prompt
}
