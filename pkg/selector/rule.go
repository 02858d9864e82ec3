package selector

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
)

// Weights of the individual signals.
const (
	PhraseWeight  = 3.0
	PatternWeight = 3.0
	KeywordWeight = 1.0
)

type phrase struct {
	text   string
	origin string
	glob   glob.Glob
}

type pattern struct {
	text string
	re   *regexp.Regexp
}

// Rule is the compiled trigger data of one skill.
type Rule struct {
	Skill *skills.Skill

	phrases  []phrase
	patterns []pattern
	keywords []string
}

// Match is the outcome of evaluating a rule against one utterance.
type Match struct {
	Score   float64
	Reasons []string
}

// Compile builds the rule for skill. Trigger phrases come from the triggers
// list and from quoted phrases in the description. Entries that fail to
// compile are skipped and reported in the returned error; the rule is usable
// either way.
func Compile(skill *skills.Skill) (*Rule, error) {
	r := &Rule{
		Skill:    skill,
		keywords: keywords(strings.NewReplacer("-", " ", "/", " ").Replace(skill.Name), skill.Description),
	}

	var result *multierror.Error
	seen := make(map[string]bool)
	addPhrase := func(text, origin string) {
		expr, ok := phraseGlob(text)
		if !ok {
			result = multierror.Append(result, errors.Errorf("%s %q has no words", origin, text))
			return
		}
		if seen[expr] {
			return
		}
		g, err := glob.Compile(expr)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "invalid %s %q", origin, text))
			return
		}
		seen[expr] = true
		r.phrases = append(r.phrases, phrase{text: text, origin: origin, glob: g})
	}

	for _, t := range skill.Triggers {
		addPhrase(t, "trigger")
	}
	for _, q := range quotedPhrases(skill.Description) {
		addPhrase(q, "phrase")
	}

	for _, p := range skill.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "invalid pattern %q", p))
			continue
		}
		r.patterns = append(r.patterns, pattern{text: p, re: re})
	}

	return r, result.ErrorOrNil()
}

// phraseGlob turns a trigger phrase into a glob over normalized text. Words
// are normalized like the input, placeholders become *, and the phrase may
// appear anywhere as whole words.
func phraseGlob(text string) (string, bool) {
	var parts []string
	words := 0
	for _, word := range strings.Fields(text) {
		if isPlaceholder(word) {
			if len(parts) > 0 && parts[len(parts)-1] != "*" {
				parts = append(parts, "*")
			}
			continue
		}
		if n := normalize(word); n != "" {
			parts = append(parts, strings.Fields(n)...)
			words++
		}
	}
	if words == 0 {
		return "", false
	}
	for len(parts) > 0 && parts[len(parts)-1] == "*" {
		parts = parts[:len(parts)-1]
	}
	return "* " + strings.Join(parts, " ") + " *", true
}

// Evaluate scores the rule against text. normalized must be normalize(text).
func (r *Rule) Evaluate(text, normalized string) Match {
	var m Match
	padded := " " + normalized + " "

	for _, p := range r.phrases {
		if p.glob.Match(padded) {
			m.Score += PhraseWeight
			m.Reasons = append(m.Reasons, p.origin+" "+quote(p.text))
		}
	}

	for _, p := range r.patterns {
		if p.re.MatchString(text) {
			m.Score += PatternWeight
			m.Reasons = append(m.Reasons, "pattern "+quote(p.text))
		}
	}

	stems := make(map[string]bool)
	for _, word := range strings.Fields(normalized) {
		stems[stem(word)] = true
	}
	for _, k := range r.keywords {
		if stems[k] {
			m.Score += KeywordWeight
			m.Reasons = append(m.Reasons, "keyword "+quote(k))
		}
	}

	return m
}

func quote(s string) string {
	return `"` + s + `"`
}
