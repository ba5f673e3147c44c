package keywords

// DefaultSynonyms maps a canonical term to its common abbreviations and
// alternative spellings.
var DefaultSynonyms = map[string][]string{
	"javascript":                        {"js", "ecmascript"},
	"python":                            {"py"},
	"artificial intelligence":           {"ai", "machine learning", "ml"},
	"user interface":                    {"ui"},
	"user experience":                   {"ux"},
	"database":                          {"db", "databases"},
	"application programming interface": {"api", "apis"},
	"continuous integration":            {"ci"},
	"continuous deployment":             {"cd"},
	"software development":              {"development", "dev"},
	"quality assurance":                 {"qa", "testing"},
	"project management":                {"pm"},
	"customer relationship management":  {"crm"},
	"enterprise resource planning":      {"erp"},
}

// Synonyms expands keywords with every member of the synonym groups they
// belong to. Expansion is symmetric: a synonym pulls in its canonical term
// and the other synonyms of that term.
type Synonyms struct {
	groups map[string][]string
}

// NewSynonyms builds a table from canonical -> synonyms entries. Terms are
// normalized before indexing. Entries sharing a term are merged into one
// group, so expanding an expanded list adds nothing.
func NewSynonyms(table map[string][]string) *Synonyms {
	parent := make(map[string]string)
	var find func(string) string
	find = func(t string) string {
		p, ok := parent[t]
		if !ok {
			parent[t] = t
			return t
		}
		if p != t {
			p = find(p)
			parent[t] = p
		}
		return p
	}

	for canonical, alternatives := range table {
		root := Normalize(canonical)
		if root == "" {
			continue
		}
		find(root)
		for _, alt := range alternatives {
			if term := Normalize(alt); term != "" {
				if a, b := find(root), find(term); a != b {
					parent[a] = b
				}
			}
		}
	}

	members := make(map[string]set)
	for term := range parent {
		root := find(term)
		if members[root] == nil {
			members[root] = newSet()
		}
		members[root].add(term)
	}

	groups := make(map[string][]string, len(parent))
	for term := range parent {
		groups[term] = members[find(term)].sorted()
	}

	return &Synonyms{groups: groups}
}

// Expand returns keywords together with their synonyms, deduplicated.
func (s *Synonyms) Expand(keywords []string) []string {
	expanded := newSet(keywords...)
	if s != nil {
		for _, kw := range keywords {
			for _, related := range s.groups[kw] {
				expanded.add(related)
			}
		}
	}
	return expanded.sorted()
}

// Size returns the number of indexed terms.
func (s *Synonyms) Size() int {
	if s == nil {
		return 0
	}
	return len(s.groups)
}
