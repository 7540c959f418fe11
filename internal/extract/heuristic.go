package extract

import (
	"context"
	"regexp"
	"strings"
)

// heuristicRule maps a sentence shape to a relation label. When swap is
// set the second capture becomes the source, for phrasings that name the
// preferred thing last.
type heuristicRule struct {
	re       *regexp.Regexp
	relation string
	swap     bool
}

var heuristicRules = []heuristicRule{
	{re: regexp.MustCompile(`(?i)\bprefers?\s+(.+?)\s+over\s+(.+)`), relation: "preferred_over"},
	{re: regexp.MustCompile(`(?i)\buse\s+(.+?)\s+instead\s+of\s+(.+)`), relation: "preferred_over"},
	{re: regexp.MustCompile(`(?i)\breplace\s+(.+?)\s+with\s+(.+)`), relation: "preferred_over", swap: true},
	{re: regexp.MustCompile(`(?i)\b(\S+)\s+depends\s+on\s+(\S+)`), relation: "depends_on"},
	{re: regexp.MustCompile(`(?i)\b(\S+)\s+uses\s+(\S+)`), relation: "uses"},
	{re: regexp.MustCompile(`(?i)\b(\S+)\s+causes\s+(\S+)`), relation: "causes"},
}

// Heuristic extracts triples with a fixed rule table. It needs no network
// access and is the default extractor.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

// Extract scans content line by line. The first rule that matches a line
// wins; lines that match nothing contribute no triples.
func (h *Heuristic) Extract(_ context.Context, content string) ([]Triple, error) {
	var triples []Triple
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, rule := range heuristicRules {
			m := rule.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			source, target := cleanTerm(m[1]), cleanTerm(m[2])
			if rule.swap {
				source, target = target, source
			}
			if source == "" || target == "" || strings.EqualFold(source, target) {
				break
			}
			triples = append(triples, Triple{Source: source, Relation: rule.relation, Target: target})
			break
		}
	}
	return triples, nil
}

// cleanTerm strips surrounding whitespace and trailing punctuation from a
// captured term.
func cleanTerm(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, ".,;:!?\"'`")
}
