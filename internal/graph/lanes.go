package graph

import "container/heap"

// laneSet tracks the open lanes of one namespace. Each open lane waits for
// one hash; index maps that hash back to its lane so lookups stay O(1).
type laneSet struct {
	ns     Namespace
	expect []string
	used   []bool
	start  []int
	helper []bool
	index  map[string]int
	free   freeLanes
	open   int

	segments []Segment
}

func newLaneSet(ns Namespace) *laneSet {
	return &laneSet{ns: ns, index: map[string]int{}}
}

func (s *laneSet) lookup(hash string) (int, bool) {
	lane, ok := s.index[hash]
	return lane, ok
}

// take returns the lane waiting for hash and clears the expectation. The
// lane itself stays open.
func (s *laneSet) take(hash string) (int, bool) {
	lane, ok := s.index[hash]
	if !ok {
		return 0, false
	}
	delete(s.index, hash)
	s.expect[lane] = ""
	return lane, true
}

// allocate opens the lowest free lane at row.
func (s *laneSet) allocate(row int) int {
	var lane int
	if s.free.Len() > 0 {
		lane = heap.Pop(&s.free).(int)
	} else {
		lane = len(s.expect)
		s.expect = append(s.expect, "")
		s.used = append(s.used, false)
		s.start = append(s.start, 0)
		s.helper = append(s.helper, false)
	}
	s.used[lane] = true
	s.start[lane] = row
	s.helper[lane] = false
	s.open++
	return lane
}

func (s *laneSet) wait(lane int, hash string) {
	s.expect[lane] = hash
	s.index[hash] = lane
}

func (s *laneSet) release(lane, row int) {
	if !s.used[lane] {
		return
	}
	if h := s.expect[lane]; h != "" {
		delete(s.index, h)
		s.expect[lane] = ""
	}
	s.used[lane] = false
	s.open--
	s.segments = append(s.segments, Segment{Lane: lane, Namespace: s.ns, StartRow: s.start[lane], EndRow: row})
	heap.Push(&s.free, lane)
}

// closeAll ends every lane still open at lastRow and returns the hashes they
// were waiting for, in lane order.
func (s *laneSet) closeAll(lastRow int) []string {
	var pending []string
	for lane, used := range s.used {
		if !used {
			continue
		}
		if h := s.expect[lane]; h != "" {
			pending = append(pending, h)
		}
		s.release(lane, lastRow)
	}
	return pending
}

func (s *laneSet) width() int { return len(s.expect) }

type freeLanes []int

func (h freeLanes) Len() int           { return len(h) }
func (h freeLanes) Less(i, j int) bool { return h[i] < h[j] }
func (h freeLanes) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *freeLanes) Push(x any)        { *h = append(*h, x.(int)) }
func (h *freeLanes) Pop() any {
	old := *h
	v := old[len(old)-1]
	*h = old[:len(old)-1]
	return v
}
