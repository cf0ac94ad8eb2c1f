package role

import (
	"regexp"
	"strings"
	"unicode"
)

// Credit is one role mentioned in a release credit, e.g. "Guitar [Lead]".
type Credit struct {
	Name   string `json:"name" yaml:"name"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// ParseCredits splits a comma separated credit string such as
// "Producer, Guitar [Lead, Acoustic], Mixed By" into credits. Commas inside
// brackets belong to the detail.
func ParseCredits(text string) []Credit {
	var (
		credits []Credit
		current strings.Builder
		depth   int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			credits = append(credits, parseCredit(s))
		}
		current.Reset()
	}
	for _, r := range text {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case r == ',' && depth == 0:
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return credits
}

func parseCredit(text string) Credit {
	var (
		name      string
		buf       strings.Builder
		details   []string
		hadDetail bool
		depth     int
	)
	for _, r := range text {
		switch r {
		case '[':
			depth++
			if depth == 1 && !hadDetail {
				name = buf.String()
				buf.Reset()
				hadDetail = true
			} else if depth > 1 {
				buf.WriteRune(r)
			}
		case ']':
			depth--
			if depth == 0 {
				details = append(details, strings.TrimSpace(buf.String()))
				buf.Reset()
			} else {
				buf.WriteRune(r)
			}
		default:
			buf.WriteRune(r)
		}
	}
	if !hadDetail {
		name = buf.String()
	}
	return Credit{
		Name:   strings.TrimSpace(name),
		Detail: strings.Join(details, ", "),
	}
}

var (
	afterHyphen      = regexp.MustCompile(`-[a-z]`)
	beforeApostrophe = regexp.MustCompile(` [A-Z]'`)
	afterApostrophe  = regexp.MustCompile(`'[a-z]`)
	afterAmpersand   = regexp.MustCompile(`&[a-z]`)
	afterBracket     = regexp.MustCompile(`\([a-z]`)
)

var renamedRoles = map[string]string{
	"Vibes":                       "Vibraphone",
	"Artwork":                     "Artwork By",
	"Artwork & Package Design By": "Artwork By",
}

// Normalize maps free-form credit spellings onto catalog casing:
// "written-by" becomes "Written By", "dj mix" becomes "DJ Mix".
// All-caps names are returned unchanged.
func Normalize(name string) string {
	if isUpper(name) {
		return name
	}

	name = strings.ReplaceAll(name, "-By", " By")
	name = strings.ReplaceAll(name, "-by", " By")
	name = strings.ReplaceAll(name, "Cgi", "CGI")
	name = strings.ReplaceAll(name, "Dj", "DJ")

	if renamed, ok := renamedRoles[name]; ok {
		return renamed
	}

	words := strings.Split(name, " ")
	for i, w := range words {
		if !isUpper(w) {
			words[i] = capitalize(w)
		}
	}
	name = strings.Join(words, " ")

	name = afterHyphen.ReplaceAllStringFunc(name, strings.ToUpper)
	name = beforeApostrophe.ReplaceAllStringFunc(name, strings.ToLower)
	name = afterApostrophe.ReplaceAllStringFunc(name, strings.ToUpper)
	name = afterAmpersand.ReplaceAllStringFunc(name, strings.ToUpper)
	name = afterBracket.ReplaceAllStringFunc(name, strings.ToUpper)
	return name
}

// Resolve maps a credit name onto a catalog entry, trying the literal name
// before its normalized spelling.
func (c *Catalog) Resolve(name string) (Role, bool) {
	if r, ok := c.Lookup(name); ok {
		return r, true
	}
	return c.Lookup(Normalize(name))
}

// isUpper matches Python's str.isupper: at least one cased letter, none lower case.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
