package hierarchy

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cairnhq/cairn/pkg/models"
)

var (
	// ErrNilPrompt is returned when Build is called without a parsed prompt.
	ErrNilPrompt = errors.New("parsed prompt is required")
	// ErrNilDecision is returned when Build is called without a decision.
	ErrNilDecision = errors.New("plan decision is required")
)

const (
	// maxTitleRunes caps titles derived from raw request text.
	maxTitleRunes = 60
	// milestoneFeatures is how many features one vision_full roadmap holds.
	milestoneFeatures = 3
	// fallbackDomain groups features the classifier could not place.
	fallbackDomain = "general"
)

// DomainLookup resolves free text to a primary domain name. An empty
// result means unknown. The builder tolerates a nil lookup.
type DomainLookup func(text string) string

// Builder materializes a plan decision into the node batch for one
// planning request.
type Builder struct {
	domains DomainLookup
}

// NewBuilder creates a Builder. The lookup is used to group features
// into epics and roadmaps by domain and may be nil.
func NewBuilder(domains DomainLookup) *Builder {
	return &Builder{domains: domains}
}

// Batch is the set of nodes one planning request materializes. The
// store writes a batch in a single locked pass so readers never observe
// a partial hierarchy.
type Batch struct {
	Vision   *models.Vision
	Epics    []*models.Epic
	Roadmaps []*models.Roadmap
	Plans    []*models.PhasePlan
}

// Build creates the hierarchy for a decision. Every request roots a
// Vision; the chosen tier controls how much structure is materialized
// beneath it. The existing slice carries registry slugs already taken,
// so the vision slug never collides with another root.
func (b *Builder) Build(request string, prompt *models.ParsedPrompt, decision *models.PlanDecision, existing []string, now time.Time) (*Batch, error) {
	if prompt == nil {
		return nil, ErrNilPrompt
	}
	if decision == nil {
		return nil, ErrNilDecision
	}
	if !decision.PlanType.Valid() {
		return nil, fmt.Errorf("unknown plan type %q", decision.PlanType)
	}

	title := DeriveTitle(request)
	if title == "" {
		title = "Untitled plan"
	}

	bb := &batchBuilder{
		domains: b.domains,
		taken:   append([]string(nil), existing...),
		now:     now,
	}
	bb.rootVision(title, request, decision)

	features := prompt.Features
	if len(features) == 0 {
		features = []string{title}
	}

	switch decision.PlanType {
	case models.PlanTaskList:
		epic := bb.addEpic(title + " epic")
		rm := bb.addRoadmap(epic, title+" roadmap")
		bb.addPlan(rm, title+" tasks", bb.tasks(features, false))

	case models.PlanPhaseDev:
		epic := bb.addEpic(title + " epic")
		rm := bb.addRoadmap(epic, title+" roadmap")
		for _, f := range features {
			bb.addPlan(rm, f, bb.tasks([]string{f}, false))
		}

	case models.PlanRoadmap:
		epic := bb.addEpic(title + " epic")
		for _, g := range bb.groupByDomain(features) {
			rm := bb.addRoadmap(epic, titleCase(g.domain)+" roadmap")
			for _, f := range g.features {
				bb.addPlan(rm, f, bb.tasks([]string{f}, false))
			}
		}

	case models.PlanEpic:
		for _, g := range bb.groupByDomain(features) {
			epic := bb.addEpic(titleCase(g.domain))
			rm := bb.addRoadmap(epic, titleCase(g.domain)+" roadmap")
			for _, f := range g.features {
				bb.addPlan(rm, f, bb.tasks([]string{f}, false))
			}
		}

	case models.PlanVisionFull:
		for _, g := range bb.groupByDomain(features) {
			epic := bb.addEpic(titleCase(g.domain))
			for i, chunk := range chunked(g.features, milestoneFeatures) {
				rm := bb.addRoadmap(epic, fmt.Sprintf("%s milestone %d", titleCase(g.domain), i+1))
				for _, f := range chunk {
					bb.addPlan(rm, f, bb.tasks([]string{f}, true))
				}
			}
		}
	}

	return bb.batch, nil
}

// DeriveTitle extracts a short human title from raw request text: the
// first non-empty line with bullet markers and trailing punctuation
// stripped, cut at a word boundary.
func DeriveTitle(request string) string {
	for _, line := range strings.Split(request, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*+# \t")
		line = strings.TrimRight(strings.TrimSpace(line), ".,;: ")
		if line == "" {
			continue
		}
		return truncateAtWord(line, maxTitleRunes)
	}
	return ""
}

// batchBuilder accumulates one Build call's output. Slugs are unique
// across the whole batch, so every node file lands at a distinct path.
type batchBuilder struct {
	domains DomainLookup
	taken   []string
	now     time.Time
	batch   *Batch
}

func (bb *batchBuilder) slug(title string) string {
	s := GenerateUniqueSlug(title, bb.taken)
	bb.taken = append(bb.taken, s)
	return s
}

func (bb *batchBuilder) meta(title string) models.NodeMeta {
	return models.NodeMeta{
		Slug:    bb.slug(title),
		Title:   title,
		Status:  models.NodeStatusPlanning,
		Created: bb.now,
		Updated: bb.now,
	}
}

func (bb *batchBuilder) rootVision(title, request string, decision *models.PlanDecision) {
	bb.batch = &Batch{
		Vision: &models.Vision{
			NodeMeta: bb.meta(title),
			PlanType: decision.PlanType,
			Request:  request,
		},
	}
}

func (bb *batchBuilder) addEpic(title string) *models.Epic {
	e := &models.Epic{
		NodeMeta:   bb.meta(title),
		VisionSlug: bb.batch.Vision.Slug,
	}
	bb.batch.Epics = append(bb.batch.Epics, e)
	bb.batch.Vision.Epics = AddPlanReference(bb.batch.Vision.Epics, RefFor(e.NodeMeta))
	return e
}

func (bb *batchBuilder) addRoadmap(epic *models.Epic, title string) *models.Roadmap {
	rm := &models.Roadmap{
		NodeMeta: bb.meta(title),
		EpicSlug: epic.Slug,
	}
	bb.batch.Roadmaps = append(bb.batch.Roadmaps, rm)
	epic.Roadmaps = AddPlanReference(epic.Roadmaps, RefFor(rm.NodeMeta))
	return rm
}

func (bb *batchBuilder) addPlan(rm *models.Roadmap, title string, tasks []models.Task) *models.PhasePlan {
	p := &models.PhasePlan{
		NodeMeta:    bb.meta(title),
		RoadmapSlug: rm.Slug,
		Tasks:       tasks,
	}
	bb.batch.Plans = append(bb.batch.Plans, p)
	rm.Plans = AddPlanReference(rm.Plans, RefFor(p.NodeMeta))
	return p
}

// tasks builds the leaf tasks for one plan. Task slugs only need to be
// unique within their plan. withVerify appends a verification task per
// feature, used at the vision_full tier where execution is autonomous.
func (bb *batchBuilder) tasks(features []string, withVerify bool) []models.Task {
	var out []models.Task
	var taken []string
	add := func(title, domain string) {
		slug := GenerateUniqueSlug(title, taken)
		taken = append(taken, slug)
		out = append(out, models.Task{
			Slug:   slug,
			Title:  title,
			Status: models.NodeStatusPending,
			Domain: domain,
		})
	}

	for _, f := range features {
		add(f, bb.domain(f))
		if withVerify {
			add("Verify "+f, "testing")
		}
	}
	return out
}

func (bb *batchBuilder) domain(text string) string {
	if bb.domains == nil {
		return ""
	}
	return bb.domains(text)
}

// domainGroup is a run of features sharing a classified domain, in
// first-appearance order.
type domainGroup struct {
	domain   string
	features []string
}

func (bb *batchBuilder) groupByDomain(features []string) []domainGroup {
	var groups []domainGroup
	index := make(map[string]int)
	for _, f := range features {
		d := bb.domain(f)
		if d == "" {
			d = fallbackDomain
		}
		i, ok := index[d]
		if !ok {
			i = len(groups)
			index[d] = i
			groups = append(groups, domainGroup{domain: d})
		}
		groups[i].features = append(groups[i].features, f)
	}
	return groups
}

func chunked(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func truncateAtWord(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
