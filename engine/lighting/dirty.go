package lighting

import "fmt"

// Kind is a light category with its own set of GPU buffers.
type Kind uint8

const (
	KindPoint Kind = iota
	KindDirectional
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindDirectional:
		return "directional"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Aspect is one thing about a light kind that can go stale: the size of the
// buffers, or the content of one of its arrays.
type Aspect uint8

const (
	AspectResize Aspect = iota
	AspectPosition
	AspectColour
	AspectAttenuation
	AspectDirection
	aspectCount
)

func (a Aspect) String() string {
	switch a {
	case AspectResize:
		return "resize"
	case AspectPosition:
		return "position"
	case AspectColour:
		return "colour"
	case AspectAttenuation:
		return "attenuation"
	case AspectDirection:
		return "direction"
	default:
		return fmt.Sprintf("aspect(%d)", uint8(a))
	}
}

// ContentAspects lists, in binding order, the per-array aspects of a kind.
func ContentAspects(k Kind) []Aspect {
	switch k {
	case KindPoint:
		return []Aspect{AspectPosition, AspectColour, AspectAttenuation}
	case KindDirectional:
		return []Aspect{AspectDirection, AspectColour}
	default:
		return nil
	}
}

// AllAspects is the resize aspect followed by ContentAspects.
func AllAspects(k Kind) []Aspect {
	return append([]Aspect{AspectResize}, ContentAspects(k)...)
}

// DirtyState is the state of one (slot, kind, aspect) cell.
type DirtyState uint8

const (
	Clean DirtyState = iota
	Pending
)

func (s DirtyState) String() string {
	if s == Pending {
		return "pending"
	}
	return "clean"
}

type aspectStates [kindCount][aspectCount]DirtyState

// DirtyTracker records which light aspects changed and which frame slots still
// have to pick those changes up.
//
// Changes are marked on a global row. Propagate copies the global row into
// every slot row and clears it, so a change reaches each slot once. A slot
// cell goes back to Clean only when that slot consumes it.
type DirtyTracker struct {
	global aspectStates
	slots  []aspectStates
}

func NewDirtyTracker(slotCount int) *DirtyTracker {
	return &DirtyTracker{
		slots: make([]aspectStates, slotCount),
	}
}

func (d *DirtyTracker) SlotCount() int {
	return len(d.slots)
}

// Mark flags aspects of a kind as changed on the global row.
func (d *DirtyTracker) Mark(kind Kind, aspects ...Aspect) {
	for _, a := range aspects {
		d.global[kind][a] = Pending
	}
}

// MarkAll flags every aspect of every kind.
func (d *DirtyTracker) MarkAll() {
	for k := Kind(0); k < kindCount; k++ {
		d.Mark(k, AllAspects(k)...)
	}
}

// Propagate moves pending global state into every slot and clears the global row.
func (d *DirtyTracker) Propagate() {
	for k := Kind(0); k < kindCount; k++ {
		for a := Aspect(0); a < aspectCount; a++ {
			if d.global[k][a] != Pending {
				continue
			}
			for s := range d.slots {
				d.slots[s][k][a] = Pending
			}
			d.global[k][a] = Clean
		}
	}
}

func (d *DirtyTracker) Global(kind Kind, aspect Aspect) DirtyState {
	return d.global[kind][aspect]
}

func (d *DirtyTracker) State(slot int, kind Kind, aspect Aspect) DirtyState {
	return d.slots[slot][kind][aspect]
}

func (d *DirtyTracker) IsPending(slot int, kind Kind, aspect Aspect) bool {
	return d.slots[slot][kind][aspect] == Pending
}

// Consume clears a slot cell and reports whether it was pending.
func (d *DirtyTracker) Consume(slot int, kind Kind, aspect Aspect) bool {
	if d.slots[slot][kind][aspect] != Pending {
		return false
	}
	d.slots[slot][kind][aspect] = Clean
	return true
}
