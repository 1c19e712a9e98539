package roadnet

import (
	"encoding/json"
	"io"

	"github.com/kotkaro/trafficsim/geometry"
)

// intersectionOutlineJSON is one non-virtual intersection's convex-hull
// outline, the optional roadnetLogFile dump's sole payload (spec.md §6's
// roadnetLogFile, supplementing original_source/roadnet/intersection.py's
// get_outline with a renderable form for external tooling).
type intersectionOutlineJSON struct {
	ID      string          `json:"id"`
	Outline []geometry.Point `json:"outline"`
}

// DumpLog writes every non-virtual intersection's outline as a JSON array
// to w, for a consumer that wants to render the intersection polygons
// alongside a replay log.
func (rn *RoadNet) DumpLog(w io.Writer) error {
	outlines := make([]intersectionOutlineJSON, 0, len(rn.Intersections))
	for _, it := range rn.Intersections {
		if it.Virtual {
			continue
		}
		outlines = append(outlines, intersectionOutlineJSON{ID: it.ID, Outline: it.GetOutline()})
	}
	return json.NewEncoder(w).Encode(outlines)
}
