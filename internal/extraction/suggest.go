package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"google.golang.org/genai"
)

// Candidate is a category the user can pick, with optional extra keywords.
type Candidate struct {
	Name     string
	Keywords []string
}

// Suggestion sources.
const (
	SourceModel   = "ai"
	SourceKeyword = "keyword"
	SourceNone    = "none"
)

// Suggestion is the category picked for a description. Category is empty
// when nothing matched.
type Suggestion struct {
	Category string `json:"category"`
	Source   string `json:"source"`
}

// SuggestCategory picks one of candidates for description. It asks the model
// when configured and falls back to keyword matching when the model is
// missing, fails or answers with a name outside the candidate list. The
// returned error is the model failure, if any; the suggestion is valid
// either way.
func (e *Extractor) SuggestCategory(ctx context.Context, description string, candidates []Candidate) (Suggestion, error) {
	if strings.TrimSpace(description) == "" || len(candidates) == 0 {
		return Suggestion{Source: SourceNone}, nil
	}

	var modelErr error
	if e.Configured() {
		name, err := e.askCategory(ctx, description, candidates)
		if err == nil {
			if c, ok := findCandidate(candidates, name); ok {
				return Suggestion{Category: c.Name, Source: SourceModel}, nil
			}
		}
		modelErr = err
	}

	if c, ok := MatchKeywords(description, candidates); ok {
		return Suggestion{Category: c.Name, Source: SourceKeyword}, modelErr
	}
	return Suggestion{Source: SourceNone}, modelErr
}

func (e *Extractor) askCategory(ctx context.Context, description string, candidates []Candidate) (string, error) {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	list, err := json.Marshal(names)
	if err != nil {
		return "", err
	}

	prompt := "Classify this personal finance transaction into exactly one category.\n\n" +
		"Transaction: " + description + "\n" +
		"Categories: " + string(list) + "\n\n" +
		"Return STRICT JSON: {\"category\": \"<one of the categories, verbatim>\"}.\n" +
		"Use {\"category\": null} when none fits.\n"

	raw, err := e.generate(ctx, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	})
	if err != nil {
		return "", err
	}

	var ans struct {
		Category *string `json:"category"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &ans); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if ans.Category == nil {
		return "", nil
	}
	return *ans.Category, nil
}

func findCandidate(candidates []Candidate, name string) (Candidate, bool) {
	key := fold(name)
	if key == "" {
		return Candidate{}, false
	}
	for _, c := range candidates {
		if fold(c.Name) == key {
			return c, true
		}
	}
	return Candidate{}, false
}

// MatchKeywords returns the candidate whose name or keywords start a word of
// the description, preferring the longest match. Matching ignores case and
// accents.
func MatchKeywords(description string, candidates []Candidate) (Candidate, bool) {
	text := " " + fold(description) + " "
	var best Candidate
	bestLen := 0
	for _, c := range candidates {
		for _, kw := range append([]string{c.Name}, c.Keywords...) {
			k := fold(kw)
			if len(k) < 3 || len(k) <= bestLen {
				continue
			}
			if strings.Contains(text, " "+k) {
				best, bestLen = c, len(k)
			}
		}
	}
	return best, bestLen > 0
}

// fold lowercases, removes accents and collapses non-alphanumerics to single
// spaces.
func fold(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.Join(strings.FieldsFunc(out, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// SplitKeywords parses a comma separated keyword list as stored on a
// category.
func SplitKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
