package roadnet

// Segment is a fixed-length partition of a Lane, caching the vehicles
// currently within [startPos, endPos) for O(segment) spatial queries
// (nearest vehicle before/after a given distance), instead of scanning the
// whole lane's vehicle list.
type Segment struct {
	Index    int
	lane     *Lane
	StartPos float64
	EndPos   float64
	vehicles []VehicleRef
}

func (s *Segment) Vehicles() []VehicleRef { return s.vehicles }

// buildSegments partitions a lane of the given length into n equal-length
// segments (n derived by the road loader from a per-segment car-capacity
// bound, per spec.md §3).
func buildSegments(lane *Lane, n int) []*Segment {
	if n < 1 {
		n = 1
	}
	segs := make([]*Segment, n)
	length := lane.Length()
	for i := 0; i < n; i++ {
		segs[i] = &Segment{
			Index:    i,
			lane:     lane,
			StartPos: float64(i) * length / float64(n),
			EndPos:   float64(i+1) * length / float64(n),
		}
	}
	return segs
}

// reindex rebuilds every segment's vehicle cache from the lane's (sorted
// descending-by-distance) vehicle list. Called from initSegments, stage 4,
// only when lane-change is enabled.
func (l *Lane) reindex() {
	for _, s := range l.segments {
		s.vehicles = s.vehicles[:0]
	}
	if len(l.segments) == 0 {
		return
	}
	segIdx := len(l.segments) - 1
	for node := l.vehicles.First(); node != nil; node = node.Next() {
		v := node.Value
		for segIdx > 0 && v.Distance() < l.segments[segIdx].StartPos {
			segIdx--
		}
		l.segments[segIdx].vehicles = append(l.segments[segIdx].vehicles, v)
		if setter, ok := v.(interface{ SetSegmentIndex(int) }); ok {
			setter.SetSegmentIndex(segIdx)
		}
	}
}

// VehicleBeforeDistance scans segments below segmentIndex, nearest first,
// for the first vehicle whose distance is < dis.
func (l *Lane) VehicleBeforeDistance(dis float64, segmentIndex int) VehicleRef {
	for i := segmentIndex - 1; i >= 0; i-- {
		for _, v := range l.segments[i].vehicles {
			if v.Distance() < dis {
				return v
			}
		}
	}
	return nil
}

// VehicleAfterDistance scans segments from segmentIndex onward for the
// first vehicle whose distance is >= dis.
func (l *Lane) VehicleAfterDistance(dis float64, segmentIndex int) VehicleRef {
	for i := segmentIndex; i < len(l.segments); i++ {
		for _, v := range l.segments[i].vehicles {
			if v.Distance() >= dis {
				return v
			}
		}
	}
	return nil
}
