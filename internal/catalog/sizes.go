package catalog

import (
	"regexp"
	"strings"
)

// Sizes is the size vocabulary accepted from the catalog and from shoppers.
var Sizes = []string{"XS", "S", "M", "L", "XL", "XXL", "28", "30", "32", "34", "36", "38", "40", "42"}

// sizeTokenRe bounds tokens by any non-letter, non-digit rune; \b is ASCII-only and
// would read "Sí" as S and "Más" as M.
var sizeTokenRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(XXL|XL|XS|S|M|L|28|30|32|34|36|38|40|42)(?:$|[^\p{L}\p{N}])`)

func validSize(s string) bool {
	for _, v := range Sizes {
		if v == s {
			return true
		}
	}
	return false
}

// CleanSizes upper-cases, validates and de-duplicates raw size labels, keeping their order.
func CleanSizes(raw []string) []string {
	var out []string
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		s := strings.ToUpper(strings.TrimSpace(r))
		if !validSize(s) || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// FindSize returns the first size token in text, upper-cased.
func FindSize(text string) (string, bool) {
	m := sizeTokenRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// HasSize reports whether size is offered, ignoring case.
func HasSize(sizes []string, size string) bool {
	for _, s := range sizes {
		if strings.EqualFold(s, size) {
			return true
		}
	}
	return false
}
