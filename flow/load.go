package flow

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/simerr"
	"github.com/kotkaro/trafficsim/vehicle"
)

type vehicleTemplateJSON struct {
	Length      float64 `json:"length"`
	Width       float64 `json:"width"`
	MaxPosAcc   float64 `json:"maxPosAcc"`
	MaxNegAcc   float64 `json:"maxNegAcc"`
	UsualPosAcc float64 `json:"usualPosAcc"`
	UsualNegAcc float64 `json:"usualNegAcc"`
	MinGap      float64 `json:"minGap"`
	MaxSpeed    float64 `json:"maxSpeed"`
	HeadwayTime float64 `json:"headwayTime"`
}

type flowJSON struct {
	Vehicle   vehicleTemplateJSON `json:"vehicle"`
	Route     []int64             `json:"route"`
	Interval  float64             `json:"interval"`
	StartTime float64             `json:"startTime"`
	EndTime   float64             `json:"endTime"`
}

// Load reads a flow-file JSON document (spec.md §6's flow-file schema) and
// builds one Flow per entry, resolving each route against net. A flow whose
// route doesn't resolve to an actual chain of roads is kept in the
// returned slice but marked invalid, with a warning through warn, rather
// than failing the whole load; an invalid flow emits no vehicles.
func Load(path string, net *roadnet.RoadNet, warn func(string)) ([]*Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "flow: open %s: %v", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "flow: read %s: %v", path, err)
	}

	var docs []flowJSON
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "flow: parse %s: %v", path, err)
	}

	flows := make([]*Flow, 0, len(docs))
	for i, fj := range docs {
		id := fmt.Sprintf("flow_%d", i)

		tmpl := vehicle.Template{
			Length:        fj.Vehicle.Length,
			Width:         fj.Vehicle.Width,
			MaxSpeed:      fj.Vehicle.MaxSpeed,
			MaxPosAcc:     fj.Vehicle.MaxPosAcc,
			MaxNegAcc:     fj.Vehicle.MaxNegAcc,
			UsualPosAcc:   fj.Vehicle.UsualPosAcc,
			UsualNegAcc:   fj.Vehicle.UsualNegAcc,
			MinGap:        fj.Vehicle.MinGap,
			HeadwayTime:   fj.Vehicle.HeadwayTime,
			TurnSpeed:     fj.Vehicle.MaxSpeed / 2,
			YieldDistance: 5,
		}

		endTime := fj.EndTime
		if endTime == 0 {
			endTime = -1
		}

		var route []*roadnet.Road
		valid := len(fj.Route) > 1
		for _, rid := range fj.Route {
			road := net.Road(rid)
			if road == nil {
				valid = false
				continue
			}
			route = append(route, road)
		}
		if valid {
			for i := 0; i+1 < len(route); i++ {
				if !route[i].ConnectedToRoad(route[i+1]) {
					valid = false
					break
				}
			}
		}

		fl := New(id, tmpl, route, fj.Interval, fj.StartTime, endTime)
		fl.valid = valid
		if !valid && warn != nil {
			warn(fmt.Sprintf("flow %q has an unresolvable route; it will emit no vehicles", id))
		}
		flows = append(flows, fl)
	}
	return flows, nil
}
