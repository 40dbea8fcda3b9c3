package syncer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/stoksync/stoksync/internal/issues"
)

// Failure reasons come back in mixed English and Turkish, so lowering
// must honour Turkish casing (dotted vs dotless i).
var lowerTurkish = cases.Lower(language.Turkish)

// ClassifyFailure maps a marketplace failure reason to an issue type.
// Reasons that say the product is unknown become match issues; anything
// else is a generic update error.
func ClassifyFailure(reason string) string {
	lowered := lowerTurkish.String(reason)
	if strings.Contains(lowered, "not found") || strings.Contains(lowered, "bulunamadı") {
		return issues.TypeUnmatched
	}
	return issues.TypeUpdateError
}
