package sources

import (
	"regexp"
	"strings"
)

var (
	parenRe   = regexp.MustCompile(`\([^)]*\)`)
	legalRe   = regexp.MustCompile(`(?i)\b(?:GEBR|PUBLIC LIMITED COMPANY|PLC|AKTIEBOLAGET|AKTIEBOLAG|PARTICIPATIONS|AG|TOVARNA ZDRAVIL|NOVO MESTO|ZHEJIANG|COMPAGNIE GENERALE DES ETABLISSEMENTS)\b`)
	spaceRe   = regexp.MustCompile(`\s+`)
	articleRe = regexp.MustCompile(`^L\s+`)
	spaRe     = regexp.MustCompile(`(?i)\bSOCIETA\s+PER\s+AZIONI\b`)
	ddRe      = regexp.MustCompile(`(?i)\s\bDD\b`)
	merckRe   = regexp.MustCompile(`(?i)\bMERCK GROUP\b`)
)

// CleanName turns a registry name into a search friendly company name:
// parenthesised text, dots and legal-form words are removed, whitespace is
// collapsed and a few national spellings are restored ("L OREAL" becomes
// "L'OREAL").
func CleanName(name string) string {
	s := parenRe.ReplaceAllString(name, "")
	s = strings.ReplaceAll(s, ".", "")
	s = legalRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	s = articleRe.ReplaceAllString(s, "L'")
	s = spaRe.ReplaceAllString(s, "s.p.a.")
	s = ddRe.ReplaceAllString(s, " D D")
	s = merckRe.ReplaceAllString(s, "MERCK KGAA")
	return s
}

// registerName strips the "S A" legal form that confuses the French
// register search.
func registerName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "S A", ""))
}
