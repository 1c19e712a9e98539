package archive

import (
	"io"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/ipld/go-car"
	"github.com/ipld/go-car/util"
	"github.com/multiformats/go-multihash"
)

// CarVehicle is one vehicle's durable fields, flattened out of the
// pointer-linked Snapshot for content-addressed export: no leader/blocker
// cross-references, since a CAR export is a one-shot dump for external
// tooling, not something ExportCAR round-trips back into a running engine.
type CarVehicle struct {
	ID           string
	Priority     int64
	FlowID       string
	DrivableID   int64
	DrivableKind int
	Distance     float64
	Speed        float64
	EnterTime    float64
}

// CarSnapshot is the single CBOR block ExportCAR writes.
type CarSnapshot struct {
	Step                 int64
	T                    float64
	FinishedVehicleCnt   int64
	CumulativeTravelTime float64
	Vehicles             []CarVehicle
}

func init() {
	cbor.RegisterCborType(CarSnapshot{})
}

func toCarSnapshot(s *Snapshot) *CarSnapshot {
	cs := &CarSnapshot{
		Step:                 s.step,
		T:                    s.t,
		FinishedVehicleCnt:   s.finishedVehicleCnt,
		CumulativeTravelTime: s.cumulativeTravelTime,
	}
	for _, v := range s.vehicles {
		d := v.CurDrivable()
		cs.Vehicles = append(cs.Vehicles, CarVehicle{
			ID:           v.ID(),
			Priority:     v.Priority(),
			FlowID:       v.FlowID(),
			DrivableID:   d.ID(),
			DrivableKind: int(d.Kind()),
			Distance:     v.Distance(),
			Speed:        v.V(),
			EnterTime:    v.EnterTime(),
		})
	}
	return cs
}

// ExportCAR writes s as a single-block CAR file: one CBOR-encoded block
// holding a flattened CarSnapshot, framed with go-car's own header and
// block-length prefix (car.WriteHeader, util.LdWrite). A snapshot has no
// internal links to walk, so this skips go-car's DAG-walk writer
// (WriteCarWithWalker) entirely along with the go-ipfs-files/go-ipfs-posinfo
// dependencies that machinery drags in for the read path; importing is out
// of scope here (see DESIGN.md).
func ExportCAR(w io.Writer, s *Snapshot) error {
	nd, err := cbor.WrapObject(toCarSnapshot(s), multihash.SHA2_256, -1)
	if err != nil {
		return err
	}

	header := &car.CarHeader{Roots: []cid.Cid{nd.Cid()}, Version: 1}
	if err := car.WriteHeader(header, w); err != nil {
		return err
	}

	return util.LdWrite(w, nd.Cid().Bytes(), nd.RawData())
}
