package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/prompts"
)

// LLM output is untrusted JSON. These helpers coerce it field by field and
// fill defaults instead of rejecting the whole answer.

func toConfidence(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) {
		return def
	}
	return min(1, max(0, f))
}

func asList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	default:
		return []any{x}
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func stringList(v any, limit int) []string {
	var out []string
	for _, item := range asList(v) {
		s := strings.TrimSpace(asString(item))
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// coerceAnswer turns a JSON object from the model into an Answer. Missing or
// malformed fields fall back to catalog defaults; confidences are clamped to
// [0, 1].
func coerceAnswer(result map[string]any, cat *prompts.Catalog) models.Answer {
	conclusion := strings.TrimSpace(asString(result["conclusion"]))
	if conclusion == "" {
		conclusion = cat.Answer.DefaultConclusion
	}

	context := stringList(result["context"], 4)
	if len(context) == 0 {
		context = []string{cat.Answer.DefaultContext}
	}

	var interps []models.Interpretation
	raw := asList(result["interpretations"])
	for i, item := range raw[:min(2, len(raw))] {
		label := "A"
		if i == 1 {
			label = "B"
		}
		switch x := item.(type) {
		case map[string]any:
			in := models.Interpretation{
				Label:      strings.TrimSpace(asString(x["label"])),
				Text:       strings.TrimSpace(asString(x["text"])),
				Confidence: toConfidence(x["confidence"], 0.3),
			}
			if in.Label == "" {
				in.Label = label
			}
			if in.Text == "" {
				in.Text = cat.Answer.DefaultInterpretation
			}
			interps = append(interps, in)
		case string:
			interps = append(interps, models.Interpretation{Label: label, Text: x, Confidence: 0.3})
		}
	}
	if len(interps) == 0 {
		interps = []models.Interpretation{{Label: "A", Text: cat.Answer.DefaultInterpretation, Confidence: 0.3}}
	}

	return models.Answer{
		Conclusion:        conclusion,
		Context:           context,
		Interpretations:   interps,
		OverallConfidence: toConfidence(result["overall_confidence"], 0.5),
	}
}

// coerceCasual builds a casual answer from model output. It reports false
// when the model gave no conclusion.
func coerceCasual(result map[string]any, lang models.Language, cat *prompts.Catalog) (models.Answer, bool) {
	conclusion := strings.TrimSpace(asString(result["conclusion"]))
	if conclusion == "" {
		return models.Answer{}, false
	}
	context := stringList(result["context"], 2)
	if len(context) == 0 {
		context = []string{cat.CasualSkippedContext(lang)}
	}
	return models.Answer{
		Conclusion: conclusion,
		Context:    context,
		Interpretations: []models.Interpretation{
			{Label: "INTENT", Text: cat.CasualIntentLabel(lang), Confidence: cat.Casual.Confidence},
		},
		OverallConfidence: toConfidence(result["overall_confidence"], 0.88),
	}, true
}

type recapDraft struct {
	text        string
	bullets     []string
	watchPoints []string
}

func coerceRecap(result map[string]any) recapDraft {
	return recapDraft{
		text:        strings.TrimSpace(asString(result["text"])),
		bullets:     stringList(result["bullets"], 4),
		watchPoints: stringList(result["watch_points"], maxWatchPoints),
	}
}
