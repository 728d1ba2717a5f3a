package orchestrator

import (
	"fmt"
	"math"
	"strings"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// sellingPressureMarkers are the localized institutional labels that flag
// distribution risk.
var sellingPressureMarkers = []string{"減碼", "賣出", "弱勢"}

// DeriveGuardrails computes the risk flags that tighten the target-price
// clamp. A fragment that failed to build never raises a flag.
func DeriveGuardrails(cfg common.AnalysisConfig, momentum *models.MomentumMetrics, institutional *models.InstitutionalSnapshot) *models.Guardrails {
	guardrails := &models.Guardrails{}

	if momentum != nil && momentum.Error == "" {
		guardrails.SevereMomentum = momentum.Score <= cfg.MomentumSevereThreshold
	}
	if institutional != nil && institutional.Error == "" {
		label := institutional.Signal.Label
		for _, marker := range sellingPressureMarkers {
			if strings.Contains(label, marker) {
				guardrails.SellingPressure = true
				break
			}
		}
	}

	return guardrails
}

// ApplyGuardrails clamps the model's target price against the current
// price. Risk flags tighten the band; a high-confidence call bypasses the
// clamp entirely. A clamp records a note and appends a localized notice to
// the rationale.
func ApplyGuardrails(cfg common.AnalysisConfig, currentPrice float64, guardrails *models.Guardrails, analysis *models.Analysis) {
	if analysis == nil || analysis.Action == nil {
		return
	}
	action := analysis.Action
	if currentPrice <= 0 || action.TargetPrice <= 0 {
		return
	}
	if action.Confidence == models.ConfidenceHigh {
		return
	}

	floor := currentPrice * cfg.LLMTargetMinMultiplier
	ceiling := currentPrice * cfg.LLMTargetMaxMultiplier
	if guardrails != nil && (guardrails.SevereMomentum || guardrails.SellingPressure) {
		floor = currentPrice * cfg.WeakSignalTargetFloor
		ceiling = currentPrice * cfg.WeakSignalTargetCap
	}

	original := action.TargetPrice
	clamped := original
	if clamped > ceiling {
		clamped = ceiling
	}
	if clamped < floor {
		clamped = floor
	}
	clamped = math.Round(clamped*100) / 100
	if clamped == original {
		return
	}

	action.TargetPrice = clamped
	action.GuardrailNote = fmt.Sprintf("target price %.2f outside allowed band [%.2f, %.2f], clamped to %.2f",
		original, math.Round(floor*100)/100, math.Round(ceiling*100)/100, clamped)
	notice := fmt.Sprintf("(目標價 %.2f 超出風險控管區間,已調整為 %.2f)", original, clamped)
	if action.Rationale != "" {
		action.Rationale += " " + notice
	} else {
		action.Rationale = notice
	}
}
