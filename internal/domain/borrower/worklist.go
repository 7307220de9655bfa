package borrower

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Rank sorts summaries into worklist order: most urgent first, then soonest
// due date, then most recently updated, then by id so equal inputs always
// produce the same order.
func Rank(summaries []Summary) {
	slices.SortStableFunc(summaries, compareSummaries)
}

func compareSummaries(a, b Summary) int {
	if a.Urgency != b.Urgency {
		if a.Urgency > b.Urgency {
			return -1
		}
		return 1
	}
	switch {
	case a.NextDue != nil && b.NextDue != nil:
		if c := a.NextDue.Compare(*b.NextDue); c != 0 {
			return c
		}
	case a.NextDue != nil:
		return -1
	case b.NextDue != nil:
		return 1
	}
	if c := b.Borrower.UpdatedAt.Compare(a.Borrower.UpdatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.Borrower.ID, b.Borrower.ID)
}

type Query struct {
	Search string
	Status Status
	// Limit caps the result; zero or less returns everything.
	Limit int
}

type Worklist struct {
	Items   []Summary `json:"items"`
	Total   int       `json:"total"`
	HasMore bool      `json:"hasMore"`
}

func Filter(summaries []Summary, q Query) []Summary {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		if needle != "" && !strings.Contains(strings.ToLower(s.Borrower.Name), needle) {
			continue
		}
		if !q.Status.Matches(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Top summarizes, filters and ranks borrowers, returning at most q.Limit items.
func Top(borrowers []*Borrower, asOf time.Time, q Query) Worklist {
	summaries := make([]Summary, 0, len(borrowers))
	for _, b := range borrowers {
		summaries = append(summaries, Summarize(b, asOf))
	}
	filtered := Filter(summaries, q)
	Rank(filtered)

	w := Worklist{Items: filtered, Total: len(filtered)}
	if q.Limit > 0 && len(filtered) > q.Limit {
		w.Items = filtered[:q.Limit]
		w.HasMore = true
	}
	return w
}

// CollectionList renders the borrowers that still owe money, most urgent first.
func CollectionList(borrowers []*Borrower, asOf time.Time) string {
	w := Top(borrowers, asOf, Query{Status: StatusActive})
	if len(w.Items) == 0 {
		return "No outstanding balances."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Collection list as of %s\n", asOf.Format("2006-01-02"))
	for i, s := range w.Items {
		fmt.Fprintf(&sb, "%d. %s - %s", i+1, s.Borrower.Name, s.Balance.StringFixed(2))
		if s.NextDue != nil {
			fmt.Fprintf(&sb, " (due %s, %s)", s.NextDue.Format("2006-01-02"), s.Urgency)
		}
		if s.Borrower.Mobile != "" {
			fmt.Fprintf(&sb, " %s", s.Borrower.Mobile)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
