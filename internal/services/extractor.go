package services

import "strings"

// ExtractSubdomain returns the registered subdomain token found in a CNAME chain.
//
// An answer matches when it contains apex. The token is the part of the answer
// before its first dot, lowercased. Every match overwrites the previous one, so
// the last matching answer wins. It returns "" when nothing matches.
func ExtractSubdomain(answers []string, apex string) string {
	apex = strings.ToLower(apex)
	if apex == "" {
		return ""
	}

	subdomain := ""
	for _, data := range answers {
		if !strings.Contains(strings.ToLower(data), apex) {
			continue
		}
		label, _, _ := strings.Cut(data, ".")
		subdomain = strings.ToLower(label)
	}
	return subdomain
}
