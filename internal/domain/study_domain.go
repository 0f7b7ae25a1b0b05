package domain

import (
	"fmt"
	"strings"
)

// Default domain identifiers.
const (
	DomainPeople   = "people"
	DomainProcess  = "process"
	DomainBusiness = "business"
)

// domainIDPrefix is stripped from identifiers and labels before prefix
// matching, so "domain-people-3" resolves the same as "people-3".
const domainIDPrefix = "domain-"

// Domain is a content area that items belong to and mastery is reported on.
type Domain struct {
	ID   string
	Name string
	// Keywords are matched as substrings when an identifier carries no
	// recognisable domain prefix. The ID is always used as a keyword.
	Keywords []string
}

// DomainSet is an ordered set of domains with the rules for mapping item
// identifiers and catalog labels onto them.
//
// Resolution has two stages. The structured stage accepts identifiers that
// begin with a domain ID followed by a separator or the end of the string.
// When that fails, the fallback stage looks for any domain keyword inside
// the identifier. Upstream identifiers are not consistent across data
// sources, so the fallback must stay.
type DomainSet struct {
	domains []Domain
}

// DefaultDomains returns the people/process/business domain set.
func DefaultDomains() *DomainSet {
	set, _ := NewDomainSet([]Domain{
		{ID: DomainPeople, Name: "People"},
		{ID: DomainProcess, Name: "Process"},
		{ID: DomainBusiness, Name: "Business Environment", Keywords: []string{"business"}},
	})
	return set
}

// NewDomainSet validates and builds a DomainSet. IDs are lowercased and must
// be unique and non-empty.
func NewDomainSet(domains []Domain) (*DomainSet, error) {
	seen := make(map[string]struct{}, len(domains))
	normalized := make([]Domain, 0, len(domains))

	for _, d := range domains {
		id := strings.ToLower(strings.TrimSpace(d.ID))
		if id == "" {
			return nil, fmt.Errorf("%w: domain ID cannot be empty", ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate domain ID %q", ErrValidation, id)
		}
		seen[id] = struct{}{}

		keywords := []string{id}
		for _, k := range d.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" && k != id {
				keywords = append(keywords, k)
			}
		}

		name := d.Name
		if name == "" {
			name = id
		}
		normalized = append(normalized, Domain{ID: id, Name: name, Keywords: keywords})
	}

	return &DomainSet{domains: normalized}, nil
}

// Domains returns the domains in configured order.
func (s *DomainSet) Domains() []Domain {
	out := make([]Domain, len(s.domains))
	copy(out, s.domains)
	return out
}

// IDs returns the domain IDs in configured order.
func (s *DomainSet) IDs() []string {
	ids := make([]string, len(s.domains))
	for i, d := range s.domains {
		ids[i] = d.ID
	}
	return ids
}

// Len returns the number of domains.
func (s *DomainSet) Len() int {
	return len(s.domains)
}

// Contains reports whether id is one of the configured domain IDs.
func (s *DomainSet) Contains(id string) bool {
	for _, d := range s.domains {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Resolve maps an item identifier or catalog label to a domain ID.
// The second result is false when neither stage matches.
func (s *DomainSet) Resolve(raw string) (string, bool) {
	if id, ok := s.resolvePrefix(raw); ok {
		return id, true
	}
	return s.resolveKeyword(raw)
}

func (s *DomainSet) resolvePrefix(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	lower = strings.TrimPrefix(lower, domainIDPrefix)

	for _, d := range s.domains {
		if !strings.HasPrefix(lower, d.ID) {
			continue
		}
		rest := lower[len(d.ID):]
		if rest == "" || isSeparator(rest[0]) {
			return d.ID, true
		}
	}
	return "", false
}

func (s *DomainSet) resolveKeyword(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, d := range s.domains {
		for _, k := range d.Keywords {
			if strings.Contains(lower, k) {
				return d.ID, true
			}
		}
	}
	return "", false
}

func isSeparator(c byte) bool {
	switch c {
	case '-', '_', ':', '/', '.', ' ':
		return true
	}
	return false
}
