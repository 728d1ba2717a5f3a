package llm

import (
	"encoding/json"
	"strings"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// cleanResponse strips markdown code fences and surrounding whitespace so a
// well-behaved response parses directly.
func cleanResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// extractBraces returns the substring from the first '{' to the last '}',
// the second parse fallback for responses wrapped in prose.
func extractBraces(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeAnalysis attempts the first two parse stages: cleaned text, then
// brace substring. The repair stage lives in the service because it needs a
// provider call.
func decodeAnalysis(text string) (*models.Analysis, bool) {
	cleaned := cleanResponse(text)

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err == nil {
		return &analysis, true
	}

	if sub, ok := extractBraces(cleaned); ok {
		analysis = models.Analysis{}
		if err := json.Unmarshal([]byte(sub), &analysis); err == nil {
			return &analysis, true
		}
	}

	return nil, false
}

// validateAnalysis enforces the output contract: a rating must be present,
// not N/A, and one of the three canonical values after normalization.
func validateAnalysis(analysis *models.Analysis) error {
	if analysis == nil || analysis.Action == nil {
		return interfaces.ErrInvalidOutput
	}

	rating := normalizeRating(string(analysis.Action.Rating))
	if rating == "" {
		return interfaces.ErrInvalidOutput
	}
	analysis.Action.Rating = rating

	analysis.Action.Confidence = normalizeConfidence(analysis.Action.Confidence)
	return nil
}

// normalizeRating maps rating spellings onto the canonical enum; unknown or
// N/A values return empty.
func normalizeRating(raw string) models.Rating {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "STRONG BUY", "買入", "買進":
		return models.RatingBuy
	case "HOLD", "NEUTRAL", "持有":
		return models.RatingHold
	case "SELL", "STRONG SELL", "賣出":
		return models.RatingSell
	default:
		return ""
	}
}

func normalizeConfidence(raw models.Confidence) models.Confidence {
	switch models.Confidence(strings.ToLower(strings.TrimSpace(string(raw)))) {
	case models.ConfidenceHigh:
		return models.ConfidenceHigh
	case models.ConfidenceMedium:
		return models.ConfidenceMedium
	case models.ConfidenceLow:
		return models.ConfidenceLow
	default:
		return ""
	}
}
