// Package selector picks the trending searches that the news is not talking about.
package selector

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/deusflow/pulse/internal/trends"
)

// Policy decides what happens when too few trends are absent from the news.
type Policy string

const (
	// PolicyTopUp fills the quota with news-covered trends, then any unused index.
	PolicyTopUp Policy = "top_up"
	// PolicyFirstN samples only uncovered trends and falls back to the first
	// Quota indices when every trend is covered.
	PolicyFirstN Policy = "first_n"
)

const DefaultQuota = 5

type Options struct {
	Quota        int // total picks, default 5
	NonNewsQuota int // picks from uncovered trends, default Quota
	Policy       Policy
}

func (o Options) normalized() Options {
	if o.Quota <= 0 {
		o.Quota = DefaultQuota
	}
	if o.NonNewsQuota <= 0 || o.NonNewsQuota > o.Quota {
		o.NonNewsQuota = o.Quota
	}
	if o.Policy == "" {
		o.Policy = PolicyTopUp
	}
	return o
}

// Overlaps reports whether title and any non-blank headline contain one another,
// ignoring case.
func Overlaps(title string, headlines []string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return false
	}
	for _, h := range headlines {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if strings.Contains(h, t) || strings.Contains(t, h) {
			return true
		}
	}
	return false
}

// FindSurprising returns the indices of up to opts.Quota trends, preferring
// ones the headlines do not mention. The result is sorted ascending, has no
// duplicates and is non-empty whenever trends is. rng is the only source of
// randomness; a nil rng uses the global generator.
func FindSurprising(list []trends.Trend, headlines []string, opts Options, rng *rand.Rand) []int {
	if len(list) == 0 {
		return []int{}
	}
	opts = opts.normalized()
	quota := min(opts.Quota, len(list))

	var nonNews, news []int
	for i, t := range list {
		if Overlaps(t.Title, headlines) {
			news = append(news, i)
		} else {
			nonNews = append(nonNews, i)
		}
	}

	var picked []int
	switch opts.Policy {
	case PolicyFirstN:
		if len(nonNews) == 0 {
			picked = make([]int, quota)
			for i := range picked {
				picked[i] = i
			}
			break
		}
		picked = sample(rng, nonNews, opts.NonNewsQuota)
	default:
		picked = sample(rng, nonNews, opts.NonNewsQuota)
		if len(picked) < quota {
			picked = append(picked, sample(rng, news, quota-len(picked))...)
		}
		if len(picked) < quota {
			used := make(map[int]bool, len(picked))
			for _, i := range picked {
				used[i] = true
			}
			var rest []int
			for i := range list {
				if !used[i] {
					rest = append(rest, i)
				}
			}
			picked = append(picked, sample(rng, rest, quota-len(picked))...)
		}
	}

	sort.Ints(picked)
	return picked
}

// sample draws up to n distinct elements of pool uniformly without replacement.
func sample(rng *rand.Rand, pool []int, n int) []int {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	cp := make([]int, len(pool))
	copy(cp, pool)
	if n > len(cp) {
		n = len(cp)
	}
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	return cp[:n]
}
