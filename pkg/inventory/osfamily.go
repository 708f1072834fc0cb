package inventory

import "strings"

// Normalized OS families.
const (
	FamilyWindows = "windows"
	FamilyLinux   = "linux"
	FamilyUnix    = "unix"
)

// Family tokens matched by substring against lowercased OS text. The
// windows check runs on "windows", not "win", so darwin never trips it.
var (
	linuxTokens = []string{"rhel", "red hat", "redhat", "centos", "fedora", "ubuntu", "debian", "suse", "linux"}
	unixTokens  = []string{"aix", "solaris", "sunos", "hp-ux", "hpux", "bsd", "darwin", "macos", "mac os", "unix"}
)

// NormalizeOSFamily maps free-form OS text onto one of the normalized
// families. Unrecognized text comes back lowercased and trimmed so exotic
// platforms still filter by their literal value.
func NormalizeOSFamily(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if family, ok := matchFamily(s); ok {
		return family
	}
	return s
}

func matchFamily(s string) (string, bool) {
	if strings.Contains(s, "windows") {
		return FamilyWindows, true
	}
	for _, token := range linuxTokens {
		if strings.Contains(s, token) {
			return FamilyLinux, true
		}
	}
	for _, token := range unixTokens {
		if strings.Contains(s, token) {
			return FamilyUnix, true
		}
	}
	return "", false
}

// ParseOSFilter splits a tool-level OS filter into a normalized family
// and trailing version text. "windows 2019" narrows to the windows family
// with "2019" matched against the version field; a filter that maps to no
// known family passes through whole so free-text matching still applies.
func ParseOSFilter(raw string) (family, version string) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ""
	}

	matched, ok := matchFamily(s)
	if !ok {
		return s, ""
	}

	// Version text is whatever follows the last token that names the
	// family: "red hat enterprise linux 8" keeps "8", not "enterprise 8".
	tokens := strings.Fields(s)
	last := -1
	for i, token := range tokens {
		if tf, ok := matchFamily(token); ok && tf == matched {
			last = i
		}
	}
	if last < 0 || last == len(tokens)-1 {
		return matched, ""
	}
	return matched, strings.Join(tokens[last+1:], " ")
}
