package keywords

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// fuzzyMinLength is the rune length a job keyword must exceed before it can
// be matched by substring containment.
const fuzzyMinLength = 3

// Match splits the job keywords into those covered by the resume and those
// missing from it. A job keyword is covered when it equals a resume keyword
// or, if longer than three characters, when one contains the other. Both
// results are sorted.
func Match(resume, job []string) (matched, missing []string) {
	resumeSet := normalizedSet(resume)
	jobSet := normalizedSet(job)
	resumeSorted := resumeSet.sorted()

	hits := newSet()
	for kw := range jobSet {
		if resumeSet.has(kw) {
			hits.add(kw)
			continue
		}
		if utf8.RuneCountInString(kw) <= fuzzyMinLength {
			continue
		}
		for _, r := range resumeSorted {
			if strings.Contains(r, kw) || strings.Contains(kw, r) {
				hits.add(kw)
				break
			}
		}
	}

	matched = hits.sorted()
	missing = make([]string, 0, len(jobSet)-len(hits))
	for _, kw := range jobSet.sorted() {
		if !hits.has(kw) {
			missing = append(missing, kw)
		}
	}

	return matched, missing
}

// PrioritizeMissing orders missing keywords by how often they occur in the
// job text, most frequent first, breaking ties alphabetically.
func PrioritizeMissing(missing []string, jobText string) []string {
	lower := strings.ToLower(jobText)

	counts := make(map[string]int, len(missing))
	for _, kw := range missing {
		if kw == "" {
			continue
		}
		counts[kw] = strings.Count(lower, strings.ToLower(kw))
	}

	out := append([]string(nil), missing...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := counts[out[i]], counts[out[j]]
		if ci != cj {
			return ci > cj
		}
		return out[i] < out[j]
	})

	return out
}

// Coverage returns the share of job keywords that were matched, in percent.
func Coverage(matched, all []string) float64 {
	if len(all) == 0 {
		return 0
	}
	return min(100, float64(len(matched))/float64(len(all))*100)
}

func normalizedSet(keywords []string) set {
	s := make(set, len(keywords))
	for _, kw := range keywords {
		if n := Normalize(kw); n != "" {
			s.add(n)
		}
	}
	return s
}
