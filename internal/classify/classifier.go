// Package classify scores free text against domain keyword sets and
// intent patterns, and estimates request complexity. The classifier is a
// keyword scorer, not an NLP model; its output is an approximate signal
// callers must tolerate being wrong.
package classify

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/cairnhq/cairn/pkg/models"
)

// PrimaryDomainThreshold is the minimum normalized score a domain needs
// to become the primary domain. Below it the classification reports no
// primary domain at all rather than guessing.
const PrimaryDomainThreshold = 0.1

// Classification is the result of classifying one piece of text.
type Classification struct {
	// Scores maps each known domain to its normalized keyword-hit ratio.
	Scores map[string]float64
	// PrimaryDomain is the best-scoring domain, or empty when no domain
	// reaches PrimaryDomainThreshold. Callers must handle the empty
	// value; it is an explicit unknown, not a default.
	PrimaryDomain string
	// Intent is the detected change kind, defaulting to build.
	Intent models.Intent
}

// Classifier scores text against configurable keyword tables.
// Deterministic given the same text and tables; no side effects.
type Classifier struct {
	domains      map[string][]string
	intents      map[models.Intent][]string
	technologies []string
	mu           sync.RWMutex
}

// tableConfig is the keywords.yaml override file structure.
type tableConfig struct {
	Domains      map[string][]string `yaml:"domains"`
	Intents      map[string][]string `yaml:"intents"`
	Technologies []string            `yaml:"technologies"`
}

// New creates a Classifier with the default keyword tables.
func New() *Classifier {
	domains := make(map[string][]string, len(DefaultDomains))
	for name, words := range DefaultDomains {
		domains[name] = append([]string{}, words...)
	}
	intents := make(map[models.Intent][]string, len(DefaultIntentPatterns))
	for intent, patterns := range DefaultIntentPatterns {
		intents[intent] = append([]string{}, patterns...)
	}
	return &Classifier{
		domains:      domains,
		intents:      intents,
		technologies: append([]string{}, DefaultTechnologies...),
	}
}

// Classify scores the text against every domain table and detects the
// intent.
func (c *Classifier) Classify(text string) Classification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lower := strings.ToLower(text)

	scores := make(map[string]float64, len(c.domains))
	for domain, words := range c.domains {
		if len(words) == 0 {
			scores[domain] = 0
			continue
		}
		hits := 0
		for _, word := range words {
			if strings.Contains(lower, strings.ToLower(word)) {
				hits++
			}
		}
		scores[domain] = float64(hits) / float64(len(words))
	}

	return Classification{
		Scores:        scores,
		PrimaryDomain: primaryDomain(scores),
		Intent:        c.detectIntentLocked(lower),
	}
}

// DetectIntent returns the intent for the text, defaulting to build when
// nothing matches.
func (c *Classifier) DetectIntent(text string) models.Intent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detectIntentLocked(strings.ToLower(text))
}

// detectIntentLocked counts pattern hits per intent over pre-lowered
// text. Caller must hold c.mu.
func (c *Classifier) detectIntentLocked(lower string) models.Intent {
	best := models.IntentBuild
	bestHits := 0
	for _, intent := range intentOrder {
		hits := 0
		for _, pattern := range c.intents[intent] {
			hits += strings.Count(lower, strings.ToLower(pattern))
		}
		if hits > bestHits {
			best = intent
			bestHits = hits
		}
	}
	return best
}

// Technologies returns the technology names found in the text, in table
// order, without duplicates.
func (c *Classifier) Technologies(text string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lower := strings.ToLower(text)
	var found []string
	seen := make(map[string]bool)
	for _, tech := range c.technologies {
		if seen[tech] {
			continue
		}
		if containsWord(lower, strings.ToLower(tech)) {
			found = append(found, tech)
			seen[tech] = true
		}
	}
	return found
}

// AddDomainKeyword adds a keyword to a domain's vocabulary, creating the
// domain if it is new.
func (c *Classifier) AddDomainKeyword(domain, keyword string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains[domain] = append(c.domains[domain], keyword)
}

// AddIntentPattern adds a pattern to an intent's table.
func (c *Classifier) AddIntentPattern(intent models.Intent, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents[intent] = append(c.intents[intent], pattern)
}

// LoadTables merges keyword tables from a YAML file into the defaults.
// Unknown intent names in the file are ignored.
func (c *Classifier) LoadTables(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var config tableConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for domain, words := range config.Domains {
		c.domains[domain] = append(c.domains[domain], words...)
	}
	for name, patterns := range config.Intents {
		intent := models.Intent(name)
		if !intent.Valid() {
			continue
		}
		c.intents[intent] = append(c.intents[intent], patterns...)
	}
	c.technologies = append(c.technologies, config.Technologies...)

	return nil
}

// primaryDomain picks the arg-max domain when its score reaches the
// threshold. Ties break alphabetically so the result is deterministic.
func primaryDomain(scores map[string]float64) string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestScore := 0.0
	for _, name := range names {
		if scores[name] > bestScore {
			best = name
			bestScore = scores[name]
		}
	}
	if bestScore < PrimaryDomainThreshold {
		return ""
	}
	return best
}

// containsWord reports whether lower contains tech as a whole word.
// Substring matching alone would hit "go" inside "category".
func containsWord(lower, tech string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], tech)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(tech)
		beforeOK := start == 0 || !isWordByte(lower[start-1])
		afterOK := end == len(lower) || !isWordByte(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(lower) {
			return false
		}
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
