package qi

import (
	"cmp"

	"github.com/creachadair/mds/heapq"
)

// Ranked is a candidate method and its distance from a requested
// method shape.
type Ranked struct {
	// Index is the candidate's position in the candidate list.
	Index    int
	Method   *MethodDescriptor
	Distance Distance
}

func compareRanked(a, b Ranked) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// Rank returns every candidate ordered by increasing distance from
// query. Candidates at equal distance keep their relative order.
func Rank(query *MethodDescriptor, candidates []*MethodDescriptor) []Ranked {
	q := heapq.New(compareRanked)
	for i, c := range candidates {
		q.Add(Ranked{i, c, query.Distance(c)})
	}
	ret := make([]Ranked, 0, len(candidates))
	for {
		r, ok := q.Pop()
		if !ok {
			return ret
		}
		ret = append(ret, r)
	}
}

// Resolve returns the index of the candidate closest to query.
//
// Resolve fails with [NoMatchingMethodError] if there are no
// candidates or all of them are [Incompatible], and with
// [AmbiguousMethodError] if several candidates share the smallest
// distance.
func Resolve(query *MethodDescriptor, candidates []*MethodDescriptor) (int, error) {
	ranked := Rank(query, candidates)
	if len(ranked) == 0 || ranked[0].Distance == Incompatible {
		err := NoMatchingMethodError{Method: query.String()}
		for _, c := range candidates {
			err.Candidates = append(err.Candidates, c.String())
		}
		return -1, err
	}

	best := ranked[0]
	tied := 1
	for tied < len(ranked) && ranked[tied].Distance == best.Distance {
		tied++
	}
	if tied > 1 {
		err := AmbiguousMethodError{Method: query.String(), Distance: best.Distance}
		for _, r := range ranked[:tied] {
			err.Tied = append(err.Tied, r.Method.String())
		}
		return -1, err
	}
	return best.Index, nil
}
