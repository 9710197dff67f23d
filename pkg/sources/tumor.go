package sources

import "strings"

// tumorAliases collapses the many free-text spellings of a tumor type
// into a canonical token, e.g. NSCLC / Non-Small Cell Lung Cancer / Lung
// Adenocarcinoma all collapse to "nsclc".
var tumorAliases = map[string]string{
	"nsclc":                       "nsclc",
	"non-small cell lung cancer":  "nsclc",
	"non small cell lung cancer":  "nsclc",
	"lung adenocarcinoma":         "nsclc",
	"melanoma":                    "melanoma",
	"cutaneous melanoma":          "melanoma",
	"colorectal cancer":           "crc",
	"colorectal":                  "crc",
	"crc":                         "crc",
	"pancreatic cancer":           "pancreatic",
	"pancreatic":                  "pancreatic",
	"pancreatic adenocarcinoma":   "pancreatic",
	"ovarian cancer":              "ovarian",
	"ovarian":                     "ovarian",
	"endometrial cancer":          "endometrial",
	"endometrial":                 "endometrial",
	"breast cancer":               "breast",
	"breast":                      "breast",
}

// CanonicalTumor maps free text to its canonical token; unrecognized
// tumor text passes through lowercased and trimmed, so unknown tumor
// types still compare consistently with themselves.
func CanonicalTumor(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canon, ok := tumorAliases[key]; ok {
		return canon
	}
	return key
}

// tumorTokenMatch reports whether the incoming tumor text canonically
// matches any of the candidate tokens.
func tumorTokenMatch(candidates []string, incoming string) bool {
	target := CanonicalTumor(incoming)
	if target == "" {
		return false
	}
	for _, c := range candidates {
		if CanonicalTumor(c) == target {
			return true
		}
	}
	return false
}
