package tier

import (
	"strings"

	"github.com/tierdx/tierdx/internal/config"
)

// MatchVariantClass implements the variant-class admission procedure: a
// gene requiring explicit class membership rejects any incoming token
// that no class pattern admits; otherwise any class admitting both the
// canonical variant and the incoming token accepts, and an exclude-list
// hit always rejects regardless of earlier matches.
func MatchVariantClass(tables *config.Tables, gene, canonicalVariant, incomingToken string) bool {
	geneClasses, ok := tables.VariantClasses[strings.ToUpper(gene)]
	if !ok {
		return true // no class table for this gene; nothing to restrict against
	}

	for _, class := range geneClasses.Classes {
		if classAdmits(class.ExcludeVariants, canonicalVariant) {
			return false
		}
	}

	matchedAny := false
	for _, class := range geneClasses.Classes {
		admitsCanonical := classAdmits(class.Variants, canonicalVariant) || patternMatches(class.Patterns, canonicalVariant)
		admitsIncoming := classAdmits(class.Variants, incomingToken) || patternMatches(class.Patterns, incomingToken)
		if admitsCanonical && admitsIncoming {
			matchedAny = true
		}
	}

	if geneClasses.RequireExplicit && !matchedAny {
		return false
	}
	return matchedAny
}

func classAdmits(variants []string, token string) bool {
	for _, v := range variants {
		if v == "*" || strings.EqualFold(v, token) {
			return true
		}
	}
	return false
}

func patternMatches(patterns []string, token string) bool {
	lower := strings.ToLower(token)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
