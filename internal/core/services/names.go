package services

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ordinalPrefix = regexp.MustCompile(`^\d+\.\s*`)

// mojibakeFixes repairs UTF-8 text that was decoded as Latin-1 upstream.
var mojibakeFixes = []struct{ from, to string }{
	{"Ã\u00a0", "à"},
	{"Ã¨", "è"},
	{"Ã©", "é"},
	{"Ã\u00ad", "í"},
	{"Ã¯", "ï"},
	{"Ã²", "ò"},
	{"Ã³", "ó"},
	{"Ãº", "ú"},
	{"Ã§", "ç"},
	{"Ã\u0087", "Ç"},
}

// canonicalNames maps every known spelling variant to the authoritative
// neighbourhood name. A variant missing here silently drops the neighbourhood
// from the baseline, so new upstream spellings must be added.
var canonicalNames = []struct{ from, to string }{
	{"Grcia", "Gràcia"},
	{"Sant Gervasi-Galvany", "Sant Gervasi - Galvany"},
	{"Sant Gervasi-la Bonanova", "Sant Gervasi - la Bonanova"},
	{"les Tres Torres", "Les Tres Torres"},
	{"Sants-Badal", "Sants - Badal"},
	{"el Poble-sec", "el Poble Sec"},
	{"el Poble-Sec", "el Poble Sec"},
}

// NormalizeName canonicalizes a raw neighbourhood label from the open-data feeds.
func NormalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}
	name = norm.NFC.String(name)
	for _, f := range mojibakeFixes {
		name = strings.ReplaceAll(name, f.from, f.to)
	}
	name = ordinalPrefix.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	for _, f := range canonicalNames {
		name = strings.ReplaceAll(name, f.from, f.to)
	}
	return name
}
