package spout

import (
	"sort"
)

type trackedOffset struct {
	offset int64
	acked  bool
}

// partitionTracker computes the highest offset of a partition below which
// every emitted message has been acknowledged. Offsets are tracked in the
// order the source delivers them, which is ascending within a partition.
type partitionTracker struct {
	lastFinished int64
	inFlight     []*trackedOffset
	exhausted    bool
}

func newPartitionTracker(lastFinished int64) *partitionTracker {
	return &partitionTracker{lastFinished: lastFinished}
}

// lastSeen is the highest offset already handed out or finished.
func (p *partitionTracker) lastSeen() int64 {
	if len(p.inFlight) > 0 {
		return p.inFlight[len(p.inFlight)-1].offset
	}
	return p.lastFinished
}

func (p *partitionTracker) track(offset int64) bool {
	if offset <= p.lastSeen() {
		return false
	}
	p.inFlight = append(p.inFlight, &trackedOffset{offset: offset})
	return true
}

func (p *partitionTracker) finish(offset int64) bool {
	idx := sort.Search(len(p.inFlight), func(i int) bool {
		return p.inFlight[i].offset >= offset
	})
	if idx == len(p.inFlight) || p.inFlight[idx].offset != offset || p.inFlight[idx].acked {
		return false
	}
	p.inFlight[idx].acked = true
	done := 0
	for done < len(p.inFlight) && p.inFlight[done].acked {
		p.lastFinished = p.inFlight[done].offset
		done++
	}
	p.inFlight = p.inFlight[done:]
	return true
}

func (p *partitionTracker) pending() int {
	return len(p.inFlight)
}

// current reports the ending offset once the partition is drained, since
// nothing past it will ever be emitted.
func (p *partitionTracker) current(ending int64, bounded bool) int64 {
	if bounded && p.exhausted && len(p.inFlight) == 0 && ending > p.lastFinished {
		return ending
	}
	return p.lastFinished
}
