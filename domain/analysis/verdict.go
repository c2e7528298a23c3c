package analysis

import "strings"

// Level is the compliance level stated in a verdict.
type Level string

// Compliance levels. The values are the literal markers expected in a verdict.
const (
	LevelNone         Level = ""
	LevelCompliant    Level = "CONFORME"
	LevelNonCompliant Level = "NON CONFORME"
	LevelToVerify     Level = "À VÉRIFIER"
)

// LevelMarker prefixes the canonical level line of a verdict.
const LevelMarker = "NIVEAU DE CONFORMITÉ : "

// folding maps accented capitals and hyphens so that "non-conforme" and
// "a verifier" read like their canonical forms.
var folding = strings.NewReplacer("É", "E", "È", "E", "Ê", "E", "À", "A", "Â", "A", "-", " ", "_", " ")

func fold(s string) string {
	return strings.Join(strings.Fields(folding.Replace(strings.ToUpper(s))), " ")
}

// VerdictLevel returns the compliance level a verdict states, ignoring case,
// accents and hyphens. Text after the last level marker wins over the body;
// NON CONFORME is checked before CONFORME since the former contains the latter.
func VerdictLevel(verdict string) Level {
	text := fold(verdict)
	if i := strings.LastIndex(text, fold(LevelMarker)); i >= 0 {
		if lvl := levelIn(text[i:]); lvl != LevelNone {
			return lvl
		}
	}
	return levelIn(text)
}

func levelIn(folded string) Level {
	switch {
	case strings.Contains(folded, "NON CONFORME"):
		return LevelNonCompliant
	case strings.Contains(folded, "A VERIFIER"):
		return LevelToVerify
	case strings.Contains(folded, "CONFORME"):
		return LevelCompliant
	default:
		return LevelNone
	}
}

// EnsureLevel guarantees the canonical "NIVEAU DE CONFORMITÉ : <LEVEL>" line.
// The level stated loosely in the text is kept; a verdict stating none gets
// À VÉRIFIER. A verdict already carrying the canonical line is unchanged.
func EnsureLevel(verdict string) string {
	lvl := VerdictLevel(verdict)
	if lvl == LevelNone {
		lvl = LevelToVerify
	}
	line := LevelMarker + string(lvl)
	if hasCanonicalLine(verdict, lvl) {
		return verdict
	}
	trimmed := strings.TrimRight(verdict, "\n ")
	if trimmed == "" {
		return line
	}
	return trimmed + "\n\n" + line
}

func hasCanonicalLine(verdict string, lvl Level) bool {
	i := strings.LastIndex(verdict, LevelMarker)
	if i < 0 {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(verdict[i+len(LevelMarker):]), string(lvl))
}
