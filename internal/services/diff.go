package services

import (
	"sort"

	"civicforge/internal/models"
)

// DiffConfigs computes the membership diff between a draft config and the
// active config, keyed by each collection's natural key. Pure and
// independent of input ordering: results are sorted lexicographically. Value
// changes under an unchanged key are not reported.
func DiffConfigs(draft, active *models.GameConfig) *models.DesignDiff {
	return &models.DesignDiff{
		QuestTypes:         diffKeys(questTypeKeys(draft), questTypeKeys(active)),
		SkillDomains:       diffKeys(skillDomainKeys(draft), skillDomainKeys(active)),
		RecognitionTiers:   diffKeys(tierKeys(draft), tierKeys(active)),
		RecognitionSources: diffKeys(sourceKeys(draft), sourceKeys(active)),
	}
}

func diffKeys(draft, active map[string]struct{}) models.DiffSection {
	var section models.DiffSection
	for key := range draft {
		if _, ok := active[key]; ok {
			section.Unchanged = append(section.Unchanged, key)
		} else {
			section.Added = append(section.Added, key)
		}
	}
	for key := range active {
		if _, ok := draft[key]; !ok {
			section.Removed = append(section.Removed, key)
		}
	}
	sort.Strings(section.Added)
	sort.Strings(section.Removed)
	sort.Strings(section.Unchanged)
	return section
}

func questTypeKeys(cfg *models.GameConfig) map[string]struct{} {
	keys := make(map[string]struct{})
	if cfg == nil {
		return keys
	}
	for _, qt := range cfg.QuestTypes {
		keys[qt.Slug] = struct{}{}
	}
	return keys
}

func skillDomainKeys(cfg *models.GameConfig) map[string]struct{} {
	keys := make(map[string]struct{})
	if cfg == nil {
		return keys
	}
	for _, sd := range cfg.SkillDomains {
		keys[sd.Slug] = struct{}{}
	}
	return keys
}

func tierKeys(cfg *models.GameConfig) map[string]struct{} {
	keys := make(map[string]struct{})
	if cfg == nil {
		return keys
	}
	for _, rt := range cfg.RecognitionTiers {
		keys[rt.Name] = struct{}{}
	}
	return keys
}

func sourceKeys(cfg *models.GameConfig) map[string]struct{} {
	keys := make(map[string]struct{})
	if cfg == nil {
		return keys
	}
	for _, rs := range cfg.RecognitionSources {
		keys[rs.SourceType] = struct{}{}
	}
	return keys
}
