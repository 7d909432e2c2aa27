package models

// RegistryEntry is a denormalized cache of a vision root's top-level
// fields. Entries are rebuildable from disk at any time; the node file
// stays the source of truth.
type RegistryEntry struct {
	// Slug identifies the vision root.
	Slug string `yaml:"slug" json:"slug"`
	// Title mirrors the vision's title.
	Title string `yaml:"title" json:"title"`
	// Status mirrors the vision's status.
	Status NodeStatus `yaml:"status" json:"status"`
	// PlanType mirrors the vision's chosen tier.
	PlanType PlanType `yaml:"plan_type" json:"plan_type"`
	// Path is the vision directory relative to the state root.
	Path string `yaml:"path" json:"path"`
}
