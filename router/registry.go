package router

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
)

// Registry resolves entity mentions in question text against the known
// set of companies and maps each name to its source document SHA1. It is
// the entity-resolution collaborator consumed by the router.
type Registry struct {
	names []string
	sha1  map[string]string
}

// LoadRegistry reads the company mapping CSV. The file must carry
// company_name and sha1 columns.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse mapping csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mapping csv %s is empty", path)
	}
	nameIdx, shaIdx := -1, -1
	for i, col := range rows[0] {
		switch strings.TrimSpace(col) {
		case "company_name":
			nameIdx = i
		case "sha1":
			shaIdx = i
		}
	}
	if nameIdx < 0 || shaIdx < 0 {
		return nil, fmt.Errorf("mapping csv must contain company_name and sha1 columns")
	}

	r := NewRegistry()
	for _, row := range rows[1:] {
		if len(row) <= nameIdx || len(row) <= shaIdx {
			continue
		}
		name := strings.Trim(strings.TrimSpace(row[nameIdx]), `"`)
		if name == "" {
			continue
		}
		r.Add(name, strings.TrimSpace(row[shaIdx]))
	}
	logger.Infof("registry: loaded %d companies from %s", len(r.names), path)
	return r, nil
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sha1: make(map[string]string)}
}

// Add registers one company name with its document SHA1.
func (r *Registry) Add(name, sha1 string) {
	if _, ok := r.sha1[name]; !ok {
		r.names = append(r.names, name)
	}
	r.sha1[name] = sha1
}

// SHA1 returns the source document hash for an entity.
func (r *Registry) SHA1(name string) (string, bool) {
	s, ok := r.sha1[name]
	return s, ok
}

// Resolve scans the question text for known company names and returns
// them in first-mention order. When one mention position matches several
// names (one a prefix of another), the longest name wins and shorter
// matches inside its span are dropped.
func (r *Registry) Resolve(text string) []string {
	type mention struct {
		name  string
		start int
		end   int
	}
	var mentions []mention
	for _, name := range r.names {
		if idx := strings.Index(text, name); idx >= 0 {
			mentions = append(mentions, mention{name: name, start: idx, end: idx + len(name)})
		}
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].start != mentions[j].start {
			return mentions[i].start < mentions[j].start
		}
		return len(mentions[i].name) > len(mentions[j].name)
	})

	var out []string
	covered := -1
	for _, m := range mentions {
		if m.start < covered {
			continue
		}
		out = append(out, m.name)
		covered = m.end
	}
	return out
}
