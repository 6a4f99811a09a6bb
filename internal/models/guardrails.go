package models

import (
	"fmt"
	"time"
)

// Structural guardrails applied to every design. They hold regardless of
// what a community votes for.
const (
	MaxQuestTypes       = 20
	MaxSkillDomains     = 15
	MinRecognitionTiers = 2
	MaxRecognitionTiers = 7

	MinSunsetHorizon = 90 * 24 * time.Hour      // 3 months
	MaxSunsetHorizon = 2 * 365 * 24 * time.Hour // 2 years
)

// GuardrailViolation describes a single failed structural check
type GuardrailViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v GuardrailViolation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidateDesignGuardrails checks a fully loaded design against the
// structural limits. Returns all violations, not just the first.
func ValidateDesignGuardrails(design *GameDesign, questTypes []QuestType, skillDomains []SkillDomain, tiers []RecognitionTier, now time.Time) []GuardrailViolation {
	var violations []GuardrailViolation

	if len(questTypes) == 0 {
		violations = append(violations, GuardrailViolation{
			Field:   "quest_types",
			Message: "design must define at least one quest type",
		})
	}
	if len(questTypes) > MaxQuestTypes {
		violations = append(violations, GuardrailViolation{
			Field:   "quest_types",
			Message: fmt.Sprintf("at most %d quest types allowed, got %d", MaxQuestTypes, len(questTypes)),
		})
	}
	if len(skillDomains) > MaxSkillDomains {
		violations = append(violations, GuardrailViolation{
			Field:   "skill_domains",
			Message: fmt.Sprintf("at most %d skill domains allowed, got %d", MaxSkillDomains, len(skillDomains)),
		})
	}
	if len(tiers) < MinRecognitionTiers || len(tiers) > MaxRecognitionTiers {
		violations = append(violations, GuardrailViolation{
			Field:   "recognition_tiers",
			Message: fmt.Sprintf("between %d and %d recognition tiers required, got %d", MinRecognitionTiers, MaxRecognitionTiers, len(tiers)),
		})
	}

	if design.SunsetAt != nil {
		horizon := design.SunsetAt.Sub(now)
		if horizon < MinSunsetHorizon {
			violations = append(violations, GuardrailViolation{
				Field:   "sunset_at",
				Message: "sunset date must be at least 3 months out",
			})
		}
		if horizon > MaxSunsetHorizon {
			violations = append(violations, GuardrailViolation{
				Field:   "sunset_at",
				Message: "sunset date must be within 2 years",
			})
		}
	}

	return violations
}
