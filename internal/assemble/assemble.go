// Package assemble renders consolidated memory into a markdown context
// block sized for an agent's prompt budget.
package assemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/LITAT-AGC/hypnos/internal/embedder"
	"github.com/LITAT-AGC/hypnos/internal/models"
	"github.com/LITAT-AGC/hypnos/internal/storage"
)

const (
	DefaultMaxTokens     = 2000
	DefaultRecentLimit   = 20
	DefaultRelationLimit = 10
	DefaultSemanticLimit = 5

	// charsPerToken is the fixed estimation ratio. Real tokenizers vary,
	// but the budget only needs to be roughly right.
	charsPerToken = 4
)

// Options shape a single assembly. Zero values select the defaults.
// Current, when set, enables the semantic section focused on that text.
type Options struct {
	MaxTokens     int
	RecentLimit   int
	RelationLimit int
	SemanticLimit int
	Current       string
}

// Assembler reads all three stores and renders the context document.
type Assembler struct {
	Log     *storage.EventLog
	Graph   *storage.Graph
	Vectors *storage.VectorIndex
	Embed   embedder.Embedder
}

type section struct {
	title string
	lines []string
}

// Build assembles the context block. Sections appear in a fixed order of
// decreasing immediacy: recent activity, then known patterns, then
// semantically relevant memories. Empty sections are omitted. When the
// rendered text would exceed the token budget it is cut at a line
// boundary and the block is flagged as truncated.
func (a *Assembler) Build(ctx context.Context, opts Options) (*models.ContextBlock, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	recentLimit := opts.RecentLimit
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	relationLimit := opts.RelationLimit
	if relationLimit <= 0 {
		relationLimit = DefaultRelationLimit
	}
	semanticLimit := opts.SemanticLimit
	if semanticLimit <= 0 {
		semanticLimit = DefaultSemanticLimit
	}

	sections := make([]section, 0, 3)

	recent, err := a.recentActivity(recentLimit)
	if err != nil {
		return nil, err
	}
	sections = append(sections, recent)

	patterns, err := a.knownPatterns(relationLimit)
	if err != nil {
		return nil, err
	}
	sections = append(sections, patterns)

	if opts.Current != "" {
		relevant, err := a.relevantContext(ctx, opts.Current, semanticLimit)
		if err != nil {
			return nil, err
		}
		sections = append(sections, relevant)
	}

	return render(sections, maxTokens), nil
}

// BuildForFile assembles context focused on a single file path.
func (a *Assembler) BuildForFile(ctx context.Context, path string, opts Options) (*models.ContextBlock, error) {
	opts.Current = path
	return a.Build(ctx, opts)
}

func (a *Assembler) recentActivity(limit int) (section, error) {
	events, err := a.Log.List(models.EventFilter{Limit: limit})
	if err != nil {
		return section{}, fmt.Errorf("list recent events: %w", err)
	}
	sec := section{title: "Recent Activity"}
	for _, ev := range events {
		sec.lines = append(sec.lines, eventLine(ev))
	}
	return sec, nil
}

func (a *Assembler) knownPatterns(limit int) (section, error) {
	rels, err := a.Graph.TopRelations(limit)
	if err != nil {
		return section{}, fmt.Errorf("list top relations: %w", err)
	}
	sec := section{title: "Known Patterns"}
	for _, r := range rels {
		sec.lines = append(sec.lines,
			fmt.Sprintf("- %s %s %s (strength %.1f)", r.SourceName, r.Label, r.TargetName, r.Strength))
	}
	return sec, nil
}

func (a *Assembler) relevantContext(ctx context.Context, current string, limit int) (section, error) {
	vec, err := a.Embed.Embed(ctx, current)
	if err != nil {
		return section{}, fmt.Errorf("embed current focus: %w", err)
	}
	hits, err := a.Vectors.Search(ctx, vec, limit)
	if err != nil {
		return section{}, fmt.Errorf("semantic lookup: %w", err)
	}
	sec := section{title: "Relevant Context"}
	for _, h := range hits {
		sec.lines = append(sec.lines, fmt.Sprintf("- (%.2f) %s", h.Similarity, oneline(h.Content)))
	}
	return sec, nil
}

// render lays the sections out under a shared heading. A section only
// starts if its header and first line both fit; after that, lines are
// added until the character budget runs out.
func render(sections []section, maxTokens int) *models.ContextBlock {
	budget := maxTokens * charsPerToken
	var b strings.Builder
	b.WriteString("# Project Memory\n")
	truncated := false

render:
	for _, sec := range sections {
		if len(sec.lines) == 0 {
			continue
		}
		opening := "\n## " + sec.title + "\n" + sec.lines[0] + "\n"
		if b.Len()+len(opening) > budget {
			truncated = true
			break
		}
		b.WriteString(opening)
		for _, line := range sec.lines[1:] {
			if b.Len()+len(line)+1 > budget {
				truncated = true
				break render
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	text := b.String()
	return &models.ContextBlock{
		Text:       text,
		TokenCount: EstimateTokens(text),
		Truncated:  truncated,
	}
}

func eventLine(ev models.InteractionEvent) string {
	line := fmt.Sprintf("- [%s] %s", ev.Kind, oneline(ev.Content))
	switch ev.Feedback {
	case models.FeedbackValidated:
		line += " (validated)"
	case models.FeedbackRejected:
		line += " (rejected)"
	}
	return line
}

// oneline collapses all whitespace runs so multi-line content stays a
// single list item.
func oneline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// EstimateTokens approximates the token count of text at four characters
// per token, rounding up.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}
