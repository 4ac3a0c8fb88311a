package loracatalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/repo"
)

// ValidateCombination checks a proposed LoRA selection against the
// combination rules and returns every violated rule as a Conflict. An empty
// slice means the selection is valid.
func (c *Catalog) ValidateCombination(ctx context.Context, selected []Selection) ([]Conflict, error) {
	entries := make(map[string]Entry)
	for _, s := range selected {
		row, err := repo.GetLoRA(ctx, c.db, s.Name)
		if err != nil {
			return nil, apperr.NotFound(component, fmt.Sprintf("lora %q not found in catalog", s.Name))
		}
		entries[s.Name] = toEntry(*row)
	}

	var conflicts []Conflict

	if conflict := checkAtMostOneCharacter(selected, entries); conflict != nil {
		conflicts = append(conflicts, *conflict)
	}
	if conflict := checkAtMostOneHeavyStyle(selected, entries); conflict != nil {
		conflicts = append(conflicts, *conflict)
	}
	if conflict := checkCombinedWeight(selected, entries); conflict != nil {
		conflicts = append(conflicts, *conflict)
	}
	denyConflicts, err := c.checkPairwiseDeny(ctx, selected)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, denyConflicts...)

	return conflicts, nil
}

// checkAtMostOneCharacter enforces rule (a): at most one LoRA of category
// character.
func checkAtMostOneCharacter(selected []Selection, entries map[string]Entry) *Conflict {
	var characters []string
	for _, s := range selected {
		if entries[s.Name].Category == CategoryCharacter {
			characters = append(characters, s.Name)
		}
	}
	if len(characters) <= 1 {
		return nil
	}
	sort.Strings(characters)
	return &Conflict{
		Rule:        "at-most-one-character",
		Message:     fmt.Sprintf("selection contains %d character LoRAs: %v", len(characters), characters),
		Remediation: "keep the character LoRA most relevant to the active prompt and remove the others",
		Involved:    characters,
	}
}

// checkAtMostOneHeavyStyle enforces rule (b): at most one style LoRA with
// weight > 0.7.
func checkAtMostOneHeavyStyle(selected []Selection, entries map[string]Entry) *Conflict {
	var heavy []string
	for _, s := range selected {
		if entries[s.Name].Category == CategoryStyle && s.Weight > styleWeightCeiling {
			heavy = append(heavy, s.Name)
		}
	}
	if len(heavy) <= 1 {
		return nil
	}
	sort.Strings(heavy)
	return &Conflict{
		Rule:        "at-most-one-heavy-style",
		Message:     fmt.Sprintf("selection contains %d style LoRAs above weight %.1f: %v", len(heavy), styleWeightCeiling, heavy),
		Remediation: fmt.Sprintf("lower all but one style LoRA's weight to %.1f or below", styleWeightCeiling),
		Involved:    heavy,
	}
}

// checkCombinedWeight enforces rule (c): total combined weight across
// non-concept LoRAs must be <= maxCombinedWeight.
func checkCombinedWeight(selected []Selection, entries map[string]Entry) *Conflict {
	var total float64
	var involved []string
	for _, s := range selected {
		if entries[s.Name].Category == CategoryConcept {
			continue
		}
		total += s.Weight
		involved = append(involved, s.Name)
	}
	if total <= maxCombinedWeight {
		return nil
	}
	sort.Strings(involved)
	return &Conflict{
		Rule:        "combined-weight-ceiling",
		Message:     fmt.Sprintf("combined non-concept weight %.2f exceeds ceiling %.2f", total, maxCombinedWeight),
		Remediation: "reduce individual weights or remove a LoRA until the combined weight is at or below the ceiling",
		Involved:    involved,
	}
}

// checkPairwiseDeny enforces rule (d): explicit pairwise-deny pairs.
func (c *Catalog) checkPairwiseDeny(ctx context.Context, selected []Selection) ([]Conflict, error) {
	rules, err := repo.ListPairwiseDeny(ctx, c.db)
	if err != nil {
		return nil, apperr.Internal(component, "list pairwise deny rules", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	present := make(map[string]bool, len(selected))
	for _, s := range selected {
		present[s.Name] = true
	}

	var conflicts []Conflict
	for _, rule := range rules {
		if present[rule.NameA] && present[rule.NameB] {
			conflicts = append(conflicts, Conflict{
				Rule:        "pairwise-deny",
				Message:     fmt.Sprintf("%s and %s are configured as mutually exclusive", rule.NameA, rule.NameB),
				Remediation: "remove one of the two LoRAs from the selection",
				Involved:    []string{rule.NameA, rule.NameB},
			})
		}
	}
	return conflicts, nil
}
