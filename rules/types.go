package rules

import "time"

// Rule represents a named rule together with its full edit history
type Rule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	NaturalLanguage string    `json:"naturalLanguage"`
	RuleCode        string    `json:"ruleCode"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Versions        []Version `json:"versions"`
}

// Version is an immutable snapshot of a rule's code at one point in time.
// IsReversion and RevertedFromVersion are only set on versions appended by Revert.
type Version struct {
	RuleCode            string    `json:"ruleCode"`
	Timestamp           time.Time `json:"timestamp"`
	IsReversion         bool      `json:"isReversion,omitempty"`
	RevertedFromVersion *int      `json:"revertedFromVersion,omitempty"`
}

// RuleInput is the caller-supplied shape accepted by Save.
// ID may be empty, in which case the store mints one.
type RuleInput struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	NaturalLanguage string `json:"naturalLanguage"`
	RuleCode        string `json:"ruleCode"`
}

// LatestVersion returns the most recently appended version, or nil for a rule
// that was never saved.
func (r *Rule) LatestVersion() *Version {
	if len(r.Versions) == 0 {
		return nil
	}
	return &r.Versions[len(r.Versions)-1]
}

// clone returns a deep copy so callers can never mutate history held by the store
func (r *Rule) clone() *Rule {
	c := *r
	c.Versions = make([]Version, len(r.Versions))
	for i, v := range r.Versions {
		c.Versions[i] = v
		if v.RevertedFromVersion != nil {
			idx := *v.RevertedFromVersion
			c.Versions[i].RevertedFromVersion = &idx
		}
	}
	return &c
}
