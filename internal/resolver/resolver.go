// Package resolver expands prompt templates into concrete text while recording
// every random choice made along the way.
//
// Three passes run in order over the current text: manual wildcard
// placeholders (__name__), inline variations ({a|b|c}), then one draw from each
// active wildcard appended in random order.
package resolver

import (
	"regexp"
	"strings"

	"pixelbatch/internal/domain"
)

var (
	wildcardPattern  = regexp.MustCompile(`__([^_]+)__`)
	variationPattern = regexp.MustCompile(`\{([^}]+)\}`)
)

// Options splits raw wildcard content into its non-blank lines, trimmed.
func Options(content string) []string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Resolve expands template against wildcards (name -> raw content) and the
// active names. It never fails: unknown or empty wildcards are left in place.
func Resolve(template string, wildcards map[string]string, active []string, rng Source) domain.ResolvedPrompt {
	if rng == nil {
		rng = DefaultSource()
	}
	var selections []domain.Selection

	text, manual := substitute(template, wildcardPattern, func(match, name string) (string, *domain.Selection) {
		options := Options(wildcards[strings.TrimSpace(name)])
		if len(options) == 0 {
			return match, nil
		}
		value := options[rng.Intn(len(options))]
		return value, &domain.Selection{
			Kind:         domain.SelectionWildcard,
			OriginalText: match,
			Value:        value,
			WildcardName: name,
			Placement:    domain.PlacementManual,
		}
	})
	selections = append(selections, manual...)

	text, variations := substitute(text, variationPattern, func(match, body string) (string, *domain.Selection) {
		choices := strings.Split(body, "|")
		for i := range choices {
			choices[i] = strings.TrimSpace(choices[i])
		}
		value := choices[rng.Intn(len(choices))]
		return value, &domain.Selection{
			Kind:         domain.SelectionVariation,
			OriginalText: match,
			Value:        value,
		}
	})
	selections = append(selections, variations...)

	var appended []string
	for _, name := range Permutation(rng, active) {
		options := Options(wildcards[name])
		if len(options) == 0 {
			continue
		}
		value := options[rng.Intn(len(options))]
		appended = append(appended, value)
		selections = append(selections, domain.Selection{
			Kind:         domain.SelectionWildcard,
			OriginalText: "__" + name + "__",
			Value:        value,
			WildcardName: name,
			Placement:    domain.PlacementAutoAppended,
		})
	}

	text = strings.TrimSpace(text)
	if len(appended) > 0 {
		suffix := strings.Join(appended, ", ")
		if text == "" {
			text = suffix
		} else {
			text = text + ", " + suffix
		}
	}
	if selections == nil {
		selections = []domain.Selection{}
	}
	return domain.ResolvedPrompt{Text: text, Selections: selections}
}

type replaceFunc func(match, group string) (string, *domain.Selection)

// substitute finds every non-overlapping match of pattern in text, computes
// all replacements first and then splices them in, so substituted values are
// never re-scanned by the same pass.
func substitute(text string, pattern *regexp.Regexp, fn replaceFunc) (string, []domain.Selection) {
	spans := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(spans) == 0 {
		return text, nil
	}
	var (
		b          strings.Builder
		selections []domain.Selection
		last       int
	)
	for _, span := range spans {
		match := text[span[0]:span[1]]
		group := text[span[2]:span[3]]
		replacement, sel := fn(match, group)
		b.WriteString(text[last:span[0]])
		b.WriteString(replacement)
		last = span[1]
		if sel != nil {
			selections = append(selections, *sel)
		}
	}
	b.WriteString(text[last:])
	return b.String(), selections
}
