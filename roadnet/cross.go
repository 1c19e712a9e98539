package roadnet

// Cross is a geometric intersection point between two lane-links inside an
// Intersection, with per-side transient "who is approaching" notify slots
// (cleared at the top of every step, filled in by notifyCross, stage 8) and
// the derived safe distances used to decide which side must yield.
type Cross struct {
	LinkA, LinkB *LaneLink

	// DistA/DistB are the arclength of the cross point along each
	// lane-link.
	DistA, DistB float64
	Angle        float64
	SafeDistA    float64
	SafeDistB    float64

	LeaveDistance  float64
	ArriveDistance float64

	notifyVehicle  [2]VehicleRef
	notifyDistance [2]float64
}

// side returns 0 if link is LinkA, 1 if link is LinkB; panics otherwise.
func (c *Cross) side(link *LaneLink) int {
	switch link {
	case c.LinkA:
		return 0
	case c.LinkB:
		return 1
	default:
		log.Panicf("roadnet: Cross.side: link does not belong to this cross")
		return -1
	}
}

func (c *Cross) distanceOnLane(link *LaneLink) float64 {
	if c.side(link) == 0 {
		return c.DistA
	}
	return c.DistB
}

// ClearNotify resets both notify slots; called at the top of every step.
func (c *Cross) ClearNotify() {
	c.notifyVehicle[0], c.notifyVehicle[1] = nil, nil
}

// Notify records v as the nearest approaching vehicle on link's side,
// signed distance notifyDistance (negative once the vehicle is past the
// cross). Stage 8 (notifyCross) guarantees at most one notify per side.
func (c *Cross) Notify(link *LaneLink, v VehicleRef, notifyDistance float64) {
	i := c.side(link)
	c.notifyVehicle[i] = v
	c.notifyDistance[i] = notifyDistance
}

// CanPass implements spec.md §4.5's canPass policy: distanceToLinkStart is
// self's signed position along link (negative while self is still on the
// approach lane, its distance on link once it has entered). Returns true
// iff self may enter the cross now.
func (c *Cross) CanPass(self VehicleRef, link *LaneLink, distanceToLinkStart float64) bool {
	i := c.side(link)
	j := 1 - i
	other := otherLink(c, i)

	foe := c.notifyVehicle[j]
	t1 := linkType(link)
	t2 := linkType(other)
	d1 := c.distanceOnLane(link) - distanceToLinkStart
	d2 := c.notifyDistance[j]

	if foe == nil {
		return true
	}
	if !self.CanYield(d1) {
		return true
	}

	// yieldStatus: -1 self passes, +1 self yields, 0 undecided.
	yieldStatus := 0
	if !foe.CanYield(d2) {
		yieldStatus = 1
	}

	if yieldStatus == 0 {
		switch {
		case t1.Priority() > t2.Priority():
			yieldStatus = -1
		case t1.Priority() < t2.Priority():
			if d2 > 0 {
				foeSteps := foe.ReachStepsOnLaneLink(d2, other.ParentRoadLink.Type.IsTurn())
				selfSteps := self.ReachStepsOnLaneLink(d1, link.ParentRoadLink.Type.IsTurn())
				if foeSteps > selfSteps {
					yieldStatus = -1
				}
			} else if d2+foe.Length() < 0 {
				yieldStatus = -1
			}
			if yieldStatus == 0 {
				yieldStatus = 1
			}
		default:
			if d2 > 0 {
				foeSteps := foe.ReachStepsOnLaneLink(d2, other.ParentRoadLink.Type.IsTurn())
				selfSteps := self.ReachStepsOnLaneLink(d1, link.ParentRoadLink.Type.IsTurn())
				switch {
				case foeSteps > selfSteps:
					yieldStatus = -1
				case foeSteps < selfSteps:
					yieldStatus = 1
				default:
					// "never entered a lane-link" sorts as later than any
					// real entry time, matching stage 10's rule that a
					// vehicle pushed onto a non-lane-link drivable has its
					// enterLaneLinkTime set to "never".
					selfEnter, selfNever := self.EnterLaneLinkTime()
					foeEnter, foeNever := foe.EnterLaneLinkTime()
					switch {
					case selfNever == foeNever && (selfNever || selfEnter == foeEnter):
						if d1 == d2 {
							yieldStatus = boolYield(self.Priority() > foe.Priority())
						} else {
							yieldStatus = boolYield(d1 < d2)
						}
					case selfNever:
						yieldStatus = 1
					case foeNever:
						yieldStatus = -1
					default:
						yieldStatus = boolYield(selfEnter < foeEnter)
					}
				}
			} else if d2+foe.Length() < 0 {
				yieldStatus = -1
			} else {
				yieldStatus = 1
			}
		}
	}

	if yieldStatus == 1 {
		// Floyd's cycle detection over the blocker chain: if the foe we'd
		// yield to is itself (transitively) blocked in a cycle, break the
		// deadlock by passing.
		slow, fast := foe, foe
		for fast != nil && fast.Blocker() != nil {
			slow = slow.Blocker()
			fast = fast.Blocker().Blocker()
			if slow == fast {
				yieldStatus = -1
				break
			}
		}
	}

	return yieldStatus == -1
}

// boolYield maps "self passes" to the -1/+1 yieldStatus encoding.
func boolYield(selfPasses bool) int {
	if selfPasses {
		return -1
	}
	return 1
}

func otherLink(c *Cross, sideOfSelf int) *LaneLink {
	if sideOfSelf == 0 {
		return c.LinkB
	}
	return c.LinkA
}

func linkType(l *LaneLink) RoadLinkType {
	if l.ParentRoadLink == nil {
		return RoadLinkStraight
	}
	return l.ParentRoadLink.Type
}
