package vehicle

import (
	"container/heap"
	"math"

	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/utils/randengine"
)

// Router tracks a vehicle's progress along its planned sequence of roads
// and picks a concrete lane or lane-link at each decision point, looking
// one road ahead so it doesn't strand itself in a lane with no way
// forward.
type Router struct {
	vehicle *Vehicle
	route   []*roadnet.Road
	rnd     *randengine.Engine

	curRoadIdx int
	planned    []roadnet.Drivable
}

func newRouter(v *Vehicle, route []*roadnet.Road, rnd *randengine.Engine) *Router {
	return &Router{vehicle: v, route: route, rnd: rnd}
}

func (r *Router) setVehicle(v *Vehicle) { r.vehicle = v }

func (r *Router) Route() []*roadnet.Road { return r.route }

// SetRoute replaces the remaining route with newRoute (the control API's
// set-vehicle-route operation, after the caller has stitched anchor roads
// into a single feasible sequence). Planning restarts from the vehicle's
// current position on newRoute[0].
func (r *Router) SetRoute(newRoute []*roadnet.Road) {
	r.route = newRoute
	r.curRoadIdx = 0
	r.planned = nil
}

func (r *Router) FirstRoad() *roadnet.Road {
	if len(r.route) == 0 {
		return nil
	}
	return r.route[0]
}

func (r *Router) FollowingRoads() []*roadnet.Road {
	if r.curRoadIdx >= len(r.route) {
		return nil
	}
	return r.route[r.curRoadIdx:]
}

// FirstDrivable picks the lane a newly-emitted vehicle should start on:
// among the first road's lanes, one with a path toward the second road if
// there is one, otherwise any lane.
func (r *Router) FirstDrivable() roadnet.Drivable {
	if len(r.route) == 0 {
		return nil
	}
	lanes := r.route[0].Lanes
	if len(r.route) == 1 {
		return r.selectLane(nil, lanes)
	}

	var candidates []*roadnet.Lane
	for _, lane := range lanes {
		if len(lane.LaneLinksToRoad(r.route[1])) > 0 {
			candidates = append(candidates, lane)
		}
	}
	if len(candidates) == 0 {
		candidates = lanes
	}
	return r.selectLane(nil, candidates)
}

// NextDrivable returns the i-th drivable beyond the vehicle's current one
// (i=0 is the immediate next), computing and caching it on demand so
// repeated calls within a step don't redo the routing search.
func (r *Router) NextDrivable(i int) roadnet.Drivable {
	for i >= len(r.planned) {
		var from roadnet.Drivable
		if n := len(r.planned); n > 0 {
			from = r.planned[n-1]
		} else {
			from = r.vehicle.controllerInfo.Drivable
		}
		next := r.nextDrivableFrom(from)
		r.planned = append(r.planned, next)
		if next == nil {
			return nil
		}
	}
	return r.planned[i]
}

// NextDrivableFrom exposes the one-step lookahead used by lane-change
// candidacy checks (e.g. "does the outer lane still lead somewhere?").
func (r *Router) NextDrivableFrom(from roadnet.Drivable) roadnet.Drivable {
	return r.nextDrivableFrom(from)
}

func (r *Router) nextDrivableFrom(from roadnet.Drivable) roadnet.Drivable {
	if from == nil {
		return nil
	}
	if ll, ok := from.AsLaneLink(); ok {
		return ll.EndLane
	}
	lane, _ := from.AsLane()
	road := lane.ParentRoad
	idx := r.indexOfRoad(road)
	if idx < 0 || idx >= len(r.route)-1 {
		return nil
	}

	nextRoad := r.route[idx+1]
	candidates := lane.LaneLinksToRoad(nextRoad)
	if idx+2 < len(r.route) {
		nextNextRoad := r.route[idx+2]
		var filtered []*roadnet.LaneLink
		for _, ll := range candidates {
			if len(ll.EndLane.LaneLinksToRoad(nextNextRoad)) > 0 {
				filtered = append(filtered, ll)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}
	return r.selectLaneLink(lane, candidates)
}

func (r *Router) indexOfRoad(road *roadnet.Road) int {
	for i := r.curRoadIdx; i < len(r.route); i++ {
		if r.route[i] == road {
			return i
		}
	}
	for i := 0; i < len(r.route); i++ {
		if r.route[i] == road {
			return i
		}
	}
	return -1
}

func (r *Router) selectLaneLink(curLane *roadnet.Lane, links []*roadnet.LaneLink) *roadnet.LaneLink {
	if len(links) == 0 {
		return nil
	}
	ends := make([]*roadnet.Lane, len(links))
	for i, ll := range links {
		ends[i] = ll.EndLane
	}
	return links[r.selectLaneIndex(curLane, ends)]
}

func (r *Router) selectLane(curLane *roadnet.Lane, lanes []*roadnet.Lane) *roadnet.Lane {
	if len(lanes) == 0 {
		return nil
	}
	return lanes[r.selectLaneIndex(curLane, lanes)]
}

// selectLaneIndex picks, among equally-reachable lanes, the one closest in
// index to curLane (minimizing how many lane changes follow); with no
// current lane (a fresh emission) it picks uniformly at random.
func (r *Router) selectLaneIndex(curLane *roadnet.Lane, lanes []*roadnet.Lane) int {
	if curLane == nil {
		if r.rnd != nil {
			return r.rnd.IntnSafe(len(lanes))
		}
		return 0
	}
	best := 0
	bestDiff := math.MaxInt
	for i, lane := range lanes {
		diff := lane.LaneIndex - curLane.LaneIndex
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

// Update advances curRoadIdx to match the road the vehicle just moved onto
// and drops the planned entries up to and including it, called from
// Vehicle.Update (stage 10) whenever the drivable buffer was set, and from
// insertShadow for a freshly placed shadow.
func (r *Router) Update() {
	cur := r.vehicle.controllerInfo.Drivable
	if lane, ok := cur.AsLane(); ok {
		if idx := r.indexOfRoad(lane.ParentRoad); idx >= 0 {
			r.curRoadIdx = idx
		}
	}
	for i, d := range r.planned {
		if d == cur {
			r.planned = r.planned[i+1:]
			return
		}
	}
	r.planned = nil
}

// IsLastRoad reports whether drivable is a lane belonging to the route's
// final road (a lane-link is never the last road).
func (r *Router) IsLastRoad(d roadnet.Drivable) bool {
	if _, ok := d.AsLaneLink(); ok {
		return false
	}
	lane, _ := d.AsLane()
	return len(r.route) > 0 && lane.ParentRoad == r.route[len(r.route)-1]
}

func (r *Router) OnLastRoad() bool {
	return r.IsLastRoad(r.vehicle.controllerInfo.Drivable)
}

// OnValidLane reports whether the vehicle's current lane still has a path
// toward the rest of the route (false means the lane-change yield speed
// should force the vehicle to brake to a stop rather than run off the end
// of its current lane).
func (r *Router) OnValidLane() bool {
	lane, ok := r.vehicle.controllerInfo.Drivable.AsLane()
	if !ok {
		return true
	}
	if r.IsLastRoad(lane) {
		return true
	}
	idx := r.indexOfRoad(lane.ParentRoad)
	if idx < 0 || idx >= len(r.route)-1 {
		return false
	}
	return len(lane.LaneLinksToRoad(r.route[idx+1])) > 0
}

// dijkstraEdge is one hop of the road-adjacency search used by
// ShortestPath.
type dijkstraEdge struct {
	road   *roadnet.Road
	weight float64
}

type dijkstraItem struct {
	road *roadnet.Road
	dist float64
}

type dijkstraQueue []*dijkstraItem

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *dijkstraQueue) Push(x interface{}) { *q = append(*q, x.(*dijkstraItem)) }
func (q *dijkstraQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// ShortestPath computes the shortest (by summed edge weight) road sequence
// from start to end,
// weighting each edge by the destination road's length (falling back to 1
// when length data isn't available yet), via Dijkstra over the road
// adjacency graph induced by lane-links. roads is every road in the
// network (the search space).
func ShortestPath(roads []*roadnet.Road, start, end *roadnet.Road) []*roadnet.Road {
	if start == end {
		return []*roadnet.Road{start}
	}

	dist := make(map[*roadnet.Road]float64, len(roads))
	prev := make(map[*roadnet.Road]*roadnet.Road, len(roads))
	for _, r := range roads {
		dist[r] = math.Inf(1)
	}
	dist[start] = 0

	pq := &dijkstraQueue{{road: start, dist: 0}}
	heap.Init(pq)
	visited := make(map[*roadnet.Road]bool, len(roads))

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*dijkstraItem)
		road := item.road
		if visited[road] {
			continue
		}
		visited[road] = true
		if road == end {
			break
		}

		for _, edge := range roadSuccessors(road) {
			nd := dist[road] + edge.weight
			if nd < dist[edge.road] {
				dist[edge.road] = nd
				prev[edge.road] = road
				heap.Push(pq, &dijkstraItem{road: edge.road, dist: nd})
			}
		}
	}

	if math.IsInf(dist[end], 1) {
		return nil
	}

	var path []*roadnet.Road
	for r := end; r != nil; r = prev[r] {
		path = append([]*roadnet.Road{r}, path...)
		if r == start {
			break
		}
	}
	return path
}

func roadSuccessors(road *roadnet.Road) []dijkstraEdge {
	seen := make(map[*roadnet.Road]bool)
	var out []dijkstraEdge
	for _, lane := range road.Lanes {
		for _, ll := range lane.LaneLinks {
			next := ll.EndLane.ParentRoad
			if next == nil || seen[next] {
				continue
			}
			seen[next] = true
			w := next.AverageLength()
			if w <= 0 {
				w = 1
			}
			out = append(out, dijkstraEdge{road: next, weight: w})
		}
	}
	return out
}
