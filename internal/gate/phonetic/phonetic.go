// Package phonetic rewrites words that sound like a trigger word, so a
// transcript of "alix, what's the budget" still activates a gate listening
// for "alex".
//
// A word is a candidate when its Double Metaphone codes share a code with a
// trigger word. Among candidates the trigger word with the highest
// Jaro-Winkler similarity wins, provided the score reaches the threshold.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultThreshold = 0.75

	// Shorter words carry too little sound to compare; "hey" would swallow
	// "he" and "hay".
	minWordLen = 4
)

// Option configures a [Corrector].
type Option func(*Corrector)

// WithThreshold sets the minimum Jaro-Winkler score for a rewrite.
// Default: 0.75.
func WithThreshold(t float64) Option {
	return func(c *Corrector) { c.threshold = t }
}

type target struct {
	word  string
	codes map[string]struct{}
}

// Corrector implements gate.Corrector. It is read-only after construction and
// safe for concurrent use.
type Corrector struct {
	targets   []target
	threshold float64
}

// New builds a Corrector for the words of the given trigger phrases. Words
// shorter than four letters are never targets.
func New(phrases []string, opts ...Option) *Corrector {
	c := &Corrector{threshold: defaultThreshold}
	for _, o := range opts {
		o(c)
	}
	seen := make(map[string]bool)
	for _, p := range phrases {
		for _, w := range strings.Fields(strings.ToLower(p)) {
			if len([]rune(w)) < minWordLen || seen[w] {
				continue
			}
			seen[w] = true
			c.targets = append(c.targets, target{word: w, codes: codes(w)})
		}
	}
	return c
}

// Correct returns normalised with every near-miss of a trigger word replaced
// by the trigger word.
func (c *Corrector) Correct(normalised string) string {
	if len(c.targets) == 0 || normalised == "" {
		return normalised
	}
	words := strings.Fields(normalised)
	changed := false
	for i, w := range words {
		if rewritten, ok := c.match(w); ok {
			words[i] = rewritten
			changed = true
		}
	}
	if !changed {
		return normalised
	}
	return strings.Join(words, " ")
}

func (c *Corrector) match(word string) (string, bool) {
	if len([]rune(word)) < minWordLen {
		return "", false
	}
	wc := codes(word)
	best, score := "", 0.0
	for _, t := range c.targets {
		if t.word == word {
			return "", false
		}
		if !overlap(wc, t.codes) {
			continue
		}
		if s := matchr.JaroWinkler(word, t.word, false); s >= c.threshold && s > score {
			best, score = t.word, s
		}
	}
	return best, best != ""
}

func codes(word string) map[string]struct{} {
	set := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		set[p] = struct{}{}
	}
	if s != "" {
		set[s] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
