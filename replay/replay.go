// Package replay writes the text replay log spec.md §6 defines: one line
// per step, every running vehicle's pose followed by every non-virtual
// road's per-lane traffic-light state, suitable for an external player to
// render frame by frame.
package replay

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/vehicle"
)

// laneState letters spec.md §6 names: green (may proceed), red (must
// wait), implicit (no traffic light governs this lane at all, e.g. a
// dead-end lane or one leaving a virtual intersection).
const (
	laneGreen    = "g"
	laneRed      = "r"
	laneImplicit = "i"
)

// Writer is an engine.ReplayLogger that appends one line per step to an
// underlying io.Writer. Build one with New and attach it with
// engine.SetReplayLogger; Close flushes and, if the writer is also an
// io.Closer, closes the underlying sink.
type Writer struct {
	net *roadnet.RoadNet
	bw  *bufio.Writer
	out io.Writer
}

func New(net *roadnet.RoadNet, w io.Writer) *Writer {
	return &Writer{net: net, bw: bufio.NewWriter(w), out: w}
}

// LogStep implements engine.ReplayLogger.
func (w *Writer) LogStep(step int64, t float64, vehicles []*vehicle.Vehicle) error {
	for _, v := range vehicles {
		if !v.IsRunning() {
			continue
		}
		point := v.GetPoint()
		heading := v.CurDrivable().DirectionByDistance(v.Distance()).Angle()
		tmpl := v.Template()
		fmt.Fprintf(w.bw, "%g %g %g %s %d %g %g,", point.X, point.Y, heading, v.ID(), v.LaneChange().LastDir(), tmpl.Length, tmpl.Width)
	}
	w.bw.WriteByte(';')

	for _, road := range w.net.Roads {
		if road.StartIntersection != nil && road.StartIntersection.Virtual &&
			road.EndIntersection != nil && road.EndIntersection.Virtual {
			// A road whose every intersection is virtual carries no
			// traffic-light-governed movement at all; spec.md §6 only asks
			// for "non-virtual road" entries.
			continue
		}
		fmt.Fprintf(w.bw, "%d", road.ID())
		for _, lane := range road.Lanes {
			w.bw.WriteByte(' ')
			w.bw.WriteString(laneState(lane))
		}
		w.bw.WriteByte(',')
	}

	w.bw.WriteByte('\n')
	return w.bw.Flush()
}

// laneState reports whether lane may currently be entered, per its
// outgoing lane-links' governing traffic light.
func laneState(lane *roadnet.Lane) string {
	if len(lane.LaneLinks) == 0 {
		return laneImplicit
	}
	first := lane.LaneLinks[0]
	if first.ParentIntersection == nil || first.ParentIntersection.Light == nil {
		return laneImplicit
	}
	for _, ll := range lane.LaneLinks {
		if ll.IsAvailable() {
			return laneGreen
		}
	}
	return laneRed
}

// Close flushes any buffered output and closes the underlying sink if it
// supports io.Closer (e.g. an *os.File opened for the configured
// replayLogFile).
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if c, ok := w.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
