package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
)

// ParseFunc decodes a catalog file into items.
type ParseFunc func(data []byte) ([]Item, error)

// Static is a Catalog read from a JSON file. The file is parsed on first use
// and cached; a failed read is retried on the next call.
type Static struct {
	fsys  fs.FS
	name  string
	parse ParseFunc

	mu    sync.Mutex
	items []Item
}

var _ Catalog = (*Static)(nil)

// NewStatic creates a catalog over the file name in fsys.
func NewStatic(fsys fs.FS, name string, parse ParseFunc) *Static {
	return &Static{fsys: fsys, name: name, parse: parse}
}

// NewFlashcardFile reads the grouped flashcard layout:
//
//	[{"meta": {"domain": "People", "ecoReference": "Task 1", ...},
//	  "flashcards": [{"id": 1, ...}]}]
func NewFlashcardFile(fsys fs.FS, name string) *Static {
	return NewStatic(fsys, name, ParseFlashcards)
}

// NewQuestionFile reads the test bank layout:
//
//	{"questions": [{"id": "q-1", "domain": "Process", ...}]}
func NewQuestionFile(fsys fs.FS, name string) *Static {
	return NewStatic(fsys, name, ParseQuestions)
}

// DomainTotals implements Catalog.
func (s *Static) DomainTotals(ctx context.Context) (map[string]int, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Totals(items), nil
}

// ItemDomains implements Catalog.
func (s *Static) ItemDomains(ctx context.Context) (map[string]string, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Index(items), nil
}

func (s *Static) load(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items != nil {
		return s.items, nil
	}

	data, err := fs.ReadFile(s.fsys, s.name)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.name, err)
	}
	items, err := s.parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.name, err)
	}
	if items == nil {
		items = []Item{}
	}
	s.items = items
	return items, nil
}

// flexID accepts both numeric and string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type flashcardGroup struct {
	Meta struct {
		Domain       string `json:"domain"`
		EcoReference string `json:"ecoReference"`
	} `json:"meta"`
	Flashcards []struct {
		ID flexID `json:"id"`
	} `json:"flashcards"`
}

// flashcardDomainIDs maps the known group labels to domain IDs. Other labels
// are slugged.
var flashcardDomainIDs = map[string]string{
	"Business Environment": "business",
	"People":               "people",
	"Process":              "process",
}

var whitespace = regexp.MustCompile(`\s+`)

func slug(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(s), "-")
}

// FlashcardID builds the item ID "<domain>-<task>-<id>" of card rawID in a
// group with the given domain label and ECO reference. Raw card IDs repeat
// across groups; the composed ID does not. An empty reference drops the task
// part.
func FlashcardID(domainLabel, ecoReference, rawID string) string {
	domainID, ok := flashcardDomainIDs[domainLabel]
	if !ok {
		domainID = slug(domainLabel)
	}
	parts := []string{domainID}
	if task := slug(strings.TrimSpace(ecoReference)); task != "" {
		parts = append(parts, task)
	}
	return strings.Join(append(parts, rawID), "-")
}

// ParseFlashcards decodes the grouped flashcard layout. Every card takes the
// domain label of its group and an ID built by FlashcardID.
func ParseFlashcards(data []byte) ([]Item, error) {
	var groups []flashcardGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, err
	}

	var items []Item
	for _, g := range groups {
		label := strings.TrimSpace(g.Meta.Domain)
		for _, c := range g.Flashcards {
			if c.ID == "" {
				continue
			}
			items = append(items, Item{
				ID:     FlashcardID(label, g.Meta.EcoReference, string(c.ID)),
				Domain: label,
			})
		}
	}
	return items, nil
}

type questionBank struct {
	Questions []struct {
		ID     flexID `json:"id"`
		Domain string `json:"domain"`
	} `json:"questions"`
}

// ParseQuestions decodes the test bank layout.
func ParseQuestions(data []byte) ([]Item, error) {
	var bank questionBank
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(bank.Questions))
	for _, q := range bank.Questions {
		if q.ID == "" {
			continue
		}
		items = append(items, Item{ID: string(q.ID), Domain: strings.TrimSpace(q.Domain)})
	}
	return items, nil
}
