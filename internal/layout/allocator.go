package layout

import (
	"github.com/skalb/diskomat/internal/plan"
)

// Allocator tracks per-volume-group capacity and hands out logical
// volumes clamped to remaining free space. State lives only for one
// planning call.
type Allocator struct {
	total map[string]int64
	used  map[string]int64
	order []string
}

func NewAllocator() *Allocator {
	return &Allocator{
		total: make(map[string]int64),
		used:  make(map[string]int64),
	}
}

// AddVG registers a volume group whose capacity is the sum of its member
// capacities (already net of any EFI carve-out).
func (a *Allocator) AddVG(name string, memberCapacities ...int64) {
	if _, ok := a.total[name]; !ok {
		a.order = append(a.order, name)
	}
	for _, c := range memberCapacities {
		a.total[name] += c
	}
}

// AddLV allocates a logical volume from vg. The request is clamped to
// the group's remaining free capacity; a request against an exhausted
// group is omitted entirely (ok == false).
func (a *Allocator) AddLV(name, vg string, requested int64) (plan.LogicalVolume, bool) {
	free := a.total[vg] - a.used[vg]
	if free <= 0 {
		return plan.LogicalVolume{}, false
	}
	allocated := requested
	if allocated > free {
		allocated = free
	}
	a.used[vg] += allocated
	return plan.LogicalVolume{Name: name, VG: vg, Size: allocated}, true
}

// Free returns the group's remaining unallocated capacity.
func (a *Allocator) Free(vg string) int64 {
	return a.total[vg] - a.used[vg]
}

// VGs lists registered groups in registration order.
func (a *Allocator) VGs() []string {
	return a.order
}

// Has reports whether vg has been registered.
func (a *Allocator) Has(vg string) bool {
	_, ok := a.total[vg]
	return ok
}
