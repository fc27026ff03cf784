package teardown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/skalb/diskomat/internal/runner"
)

// PV is one LVM physical volume from the pvs catalog.
type PV struct {
	Name string
	VG   string
}

// LV is one LVM logical volume from the lvs catalog.
type LV struct {
	Name string
	VG   string
	Path string
}

// Catalog holds the machine-wide LVM state at discovery time.
type Catalog struct {
	PVs []PV
	LVs []LV
}

type pvReport struct {
	Report []struct {
		PV []struct {
			PVName string `json:"pv_name"`
			VGName string `json:"vg_name"`
		} `json:"pv"`
	} `json:"report"`
}

type lvReport struct {
	Report []struct {
		LV []struct {
			LVName string `json:"lv_name"`
			VGName string `json:"vg_name"`
			LVPath string `json:"lv_path"`
		} `json:"lv"`
	} `json:"report"`
}

// DiscoverLVM reads the PV and LV catalogs. A machine without the LVM
// tools installed yields an empty catalog; any other failure aborts,
// because tearing down on top of an unreliable catalog is worse than
// not starting.
func DiscoverLVM(ctx context.Context, r runner.Runner) (*Catalog, error) {
	cat := &Catalog{}

	res, err := r.Run(ctx, "pvs", "-o", "pv_name,vg_name", "--reportformat", "json")
	if err != nil {
		if toolMissing(err) {
			log.Debug().Msg("lvm tools not present, skipping catalog")
			return cat, nil
		}
		return nil, fmt.Errorf("read pv catalog: %w", err)
	}
	var pvs pvReport
	if err := json.Unmarshal(res.Stdout, &pvs); err != nil {
		return nil, fmt.Errorf("parse pv catalog: %w", err)
	}
	for _, rep := range pvs.Report {
		for _, pv := range rep.PV {
			cat.PVs = append(cat.PVs, PV{Name: pv.PVName, VG: pv.VGName})
		}
	}

	res, err = r.Run(ctx, "lvs", "-o", "lv_name,vg_name,lv_path", "--reportformat", "json")
	if err != nil {
		return nil, fmt.Errorf("read lv catalog: %w", err)
	}
	var lvs lvReport
	if err := json.Unmarshal(res.Stdout, &lvs); err != nil {
		return nil, fmt.Errorf("parse lv catalog: %w", err)
	}
	for _, rep := range lvs.Report {
		for _, lv := range rep.LV {
			cat.LVs = append(cat.LVs, LV{Name: lv.LVName, VG: lv.VGName, Path: lv.LVPath})
		}
	}

	return cat, nil
}

func toolMissing(err error) bool {
	var cmdErr *runner.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == -1
}

// relevantVGs returns the volume groups stacked (directly or through
// further LVM layers) on graph devices, grouped in discovery rounds:
// round 0 sits directly on graph nodes, round n sits on round n-1's
// logical volumes. Peeling proceeds from the last round back to the
// first, so arbitrarily deep LVM-on-LVM unwinds top-down.
func (c *Catalog) relevantVGs(g *Graph) [][]string {
	inRound := make(map[string]bool)
	onDevice := func(path string) bool { return g.Has(path) }

	var rounds [][]string
	for {
		var round []string
		for _, pv := range c.PVs {
			if pv.VG == "" || inRound[pv.VG] || !onDevice(pv.Name) {
				continue
			}
			round = append(round, pv.VG)
			inRound[pv.VG] = true
		}
		if len(round) == 0 {
			break
		}
		rounds = append(rounds, round)

		// the next layer sits on this round's logical volumes
		lvPaths := make(map[string]bool)
		for _, lv := range c.LVs {
			if inRound[lv.VG] && lv.Path != "" {
				lvPaths[lv.Path] = true
			}
		}
		prev := onDevice
		onDevice = func(path string) bool { return lvPaths[path] || prev(path) }
	}
	return rounds
}

// LVsOf returns the catalog's logical volumes belonging to vg.
func (c *Catalog) LVsOf(vg string) []LV {
	var out []LV
	for _, lv := range c.LVs {
		if lv.VG == vg {
			out = append(out, lv)
		}
	}
	return out
}

// PVsOf returns the physical volume device paths belonging to vg.
func (c *Catalog) PVsOf(vg string) []string {
	var out []string
	for _, pv := range c.PVs {
		if pv.VG == vg {
			out = append(out, pv.Name)
		}
	}
	return out
}
