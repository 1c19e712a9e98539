package roadnet

import "github.com/kotkaro/trafficsim/geometry"

const laneHistoryLen = 240

// HistoryRecord is one step's worth of throughput sample for a lane,
// folded into a running average by UpdateHistory.
type HistoryRecord struct {
	VehicleNum   int
	AverageSpeed float64
}

// Lane is one traffic lane of a Road: a drivable with a waiting buffer
// (vehicles queued to enter once Available), a segment-indexed vehicle
// cache, and a rolling speed/occupancy history used for getPressure-style
// signals.
type Lane struct {
	drivableBase

	LaneIndex  int
	ParentRoad *Road
	LaneLinks  []*LaneLink

	waitingBuffer []VehicleRef
	segments      []*Segment

	historyVehicleNum   int
	historyAverageSpeed float64
	history             []HistoryRecord
}

func newLane(id int64, width, maxSpeed float64, laneIndex int, road *Road) *Lane {
	l := &Lane{LaneIndex: laneIndex, ParentRoad: road}
	l.id = id
	l.width = width
	l.maxSpeed = maxSpeed
	return l
}

func (l *Lane) Kind() DrivableKind { return KindLane }

func (l *Lane) AsLane() (*Lane, bool)         { return l, true }
func (l *Lane) AsLaneLink() (*LaneLink, bool) { return nil, false }

// Available implements the min-gap entry test used by handleWaiting
// (stage 6): a vehicle may leave the waiting buffer and enter this lane if
// the vehicle nearest the lane's start (the list tail, smallest distance)
// clears it by at least minGap.
func (l *Lane) Available(v VehicleRef) bool {
	tail := l.vehicles.Last()
	if tail == nil {
		return true
	}
	return tail.Value.Distance() > tail.Value.Length()+v.MinGap()
}

// CanEnter is the looser length-or-speed test used when a vehicle checks
// whether the end lane of its upcoming lane-link can accept it (the
// intersection-related speed cap); handleWaiting uses Available, not this.
func (l *Lane) CanEnter(v VehicleRef) bool {
	tail := l.vehicles.Last()
	if tail == nil {
		return true
	}
	return tail.Value.Distance() > tail.Value.Length()+v.Length() || tail.Value.V() >= 2
}

// LaneLinksToRoad returns this lane's outgoing lane-links that end on the
// given road, used by the router to plan the next drivable.
func (l *Lane) LaneLinksToRoad(road *Road) []*LaneLink {
	var out []*LaneLink
	for _, ll := range l.LaneLinks {
		if ll.EndLane != nil && ll.EndLane.ParentRoad == road {
			out = append(out, ll)
		}
	}
	return out
}

func (l *Lane) GetInnerLane() *Lane {
	if l.LaneIndex > 0 {
		return l.ParentRoad.Lanes[l.LaneIndex-1]
	}
	return nil
}

func (l *Lane) GetOuterLane() *Lane {
	if l.LaneIndex < len(l.ParentRoad.Lanes)-1 {
		return l.ParentRoad.Lanes[l.LaneIndex+1]
	}
	return nil
}

func (l *Lane) WaitingBuffer() []VehicleRef { return l.waitingBuffer }

// SetWaitingBuffer overwrites the waiting buffer wholesale; used by archive
// restore to rebuild the FIFO queue from a snapshot.
func (l *Lane) SetWaitingBuffer(buf []VehicleRef) { l.waitingBuffer = buf }

func (l *Lane) PushWaiting(v VehicleRef) {
	l.waitingBuffer = append(l.waitingBuffer, v)
}

// PopWaiting removes and returns the front of the waiting buffer (FIFO).
func (l *Lane) PopWaiting() VehicleRef {
	if len(l.waitingBuffer) == 0 {
		return nil
	}
	v := l.waitingBuffer[0]
	l.waitingBuffer = l.waitingBuffer[1:]
	return v
}

func (l *Lane) BuildSegmentation(n int) {
	l.segments = buildSegments(l, n)
}

func (l *Lane) Segments() []*Segment { return l.segments }

// InitSegments rebuilds the per-segment vehicle cache from the current
// vehicle list; called every step (stage 4) when lane-change is enabled,
// since the order of vehicles.get_vehicles_before/after_distance backs the
// lane-change side-gap search.
func (l *Lane) InitSegments() {
	l.reindex()
}

// UpdateHistory folds this step's vehicle count and average speed into the
// rolling window (the oldest samples are dropped while more than
// laneHistoryLen are held, before the new one is appended, so the window
// holds laneHistoryLen+1 samples once full), the source of
// Road.GetAverageSpeed/GetAverageDuration.
func (l *Lane) UpdateHistory() {
	speedSum := float64(l.historyVehicleNum) * l.historyAverageSpeed

	for len(l.history) > laneHistoryLen {
		old := l.history[0]
		l.historyVehicleNum -= old.VehicleNum
		speedSum -= float64(old.VehicleNum) * old.AverageSpeed
		l.history = l.history[1:]
	}

	curSpeedSum := 0.0
	n := 0
	for node := l.vehicles.First(); node != nil; node = node.Next() {
		curSpeedSum += node.Value.V()
		n++
	}
	l.historyVehicleNum += n
	speedSum += curSpeedSum

	if n != 0 {
		l.history = append(l.history, HistoryRecord{VehicleNum: n, AverageSpeed: curSpeedSum / float64(n)})
	} else {
		l.history = append(l.history, HistoryRecord{VehicleNum: 0})
	}

	if l.historyVehicleNum != 0 {
		l.historyAverageSpeed = speedSum / float64(l.historyVehicleNum)
	} else {
		l.historyAverageSpeed = 0
	}
}

func (l *Lane) HistoryVehicleNum() int       { return l.historyVehicleNum }
func (l *Lane) HistoryAverageSpeed() float64 { return l.historyAverageSpeed }

// History returns the rolling throughput ring, for archive snapshot.
func (l *Lane) History() []HistoryRecord { return l.history }

// SetHistory restores the rolling throughput ring and its running
// reduction from an archive snapshot.
func (l *Lane) SetHistory(h []HistoryRecord, vehicleNum int, avgSpeed float64) {
	l.history = h
	l.historyVehicleNum = vehicleNum
	l.historyAverageSpeed = avgSpeed
}

// GetPressure is the queue-length signal exposed to external traffic-light
// control: vehicles present plus those waiting to enter.
func (l *Lane) GetPressure() int {
	count := 0
	for node := l.vehicles.First(); node != nil; node = node.Next() {
		count++
	}
	return count + len(l.waitingBuffer)
}

func (l *Lane) Reset() {
	l.waitingBuffer = l.waitingBuffer[:0]
	l.vehicles = VehicleList{}
	l.historyVehicleNum = 0
	l.historyAverageSpeed = 0
	l.history = nil
}

func (l *Lane) setPointsFrom(pts []geometry.Point) { l.setPoints(pts) }
