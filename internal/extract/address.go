package extract

import (
	"regexp"
	"strings"

	"bankrot/harvester/internal/lot"
)

// addressStrategies are tried in order over the whitespace-normalized
// description text. Each captures up to the next recognized section
// keyword or end of string; the trailing alternation is consumed, not
// captured, because RE2 has no lookahead. Keeping the chain in one table
// makes the fallback order a testable artifact.
var addressStrategies = []*regexp.Regexp{
	// "расположен(а/о/ы)… по адресу:" / "находится по адресу:"
	regexp.MustCompile(`(?i)(?:расположен\p{L}*|наход\p{L}*)\s+по\s+адрес[ау]?\s*:\s*(.+?)(?:начальн\p{L}*\s+цен|задаток|кадастров\p{L}*\s+номер|$)`),
	// bare "по адресу:"
	regexp.MustCompile(`(?i)по\s+адрес[ау]?\s*:\s*(.+?)(?:начальн\p{L}*\s+цен|задаток|кадастров\p{L}*\s+номер|$)`),
	// "местонахождение:"
	regexp.MustCompile(`(?i)местонахождение\s*:\s*(.+?)(?:начальн\p{L}*\s+цен|задаток|$)`),
}

// addressFromText runs the strategy chain over free text.
func addressFromText(text string) lot.Value {
	t := normalizeSpace(text)
	if t == "" {
		return lot.NotFound
	}
	for _, re := range addressStrategies {
		if m := re.FindStringSubmatch(t); m != nil {
			if addr := strings.Trim(m[1], " ,.;"); addr != "" {
				return lot.Found(addr)
			}
		}
	}
	return lot.NotFound
}
