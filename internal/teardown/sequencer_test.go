package teardown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalb/diskomat/internal/plan"
	"github.com/skalb/diskomat/internal/runner"
)

const emptyLVMReport = `{"report": [{}]}`

// stackRecorder scripts the discovery commands for a raid1+LVM stack on
// /dev/sdb; every destructive command succeeds by default.
func stackRecorder() *runner.Recorder {
	tree := `{"blockdevices": [
	  {"name": "sdb", "path": "/dev/sdb", "type": "disk", "mountpoints": [null], "children": [
	    {"name": "sdb1", "path": "/dev/sdb1", "type": "part", "mountpoints": [null], "children": [
	      {"name": "md0", "path": "/dev/md0", "type": "raid1", "mountpoints": [null], "children": [
	        {"name": "main-slash", "path": "/dev/mapper/main-slash", "type": "lvm",
	         "mountpoints": ["/mnt/data"]}
	      ]}
	    ]}
	  ]}
	]}`
	return &runner.Recorder{
		Responses: map[string]runner.Response{
			"pvs -o pv_name,vg_name --reportformat json": {
				Stdout: `{"report": [{"pv": [{"pv_name": "/dev/md0", "vg_name": "main"}]}]}`,
			},
			"lvs -o lv_name,vg_name,lv_path --reportformat json": {
				Stdout: `{"report": [{"lv": [{"lv_name": "slash", "vg_name": "main", "lv_path": "/dev/main/slash"}]}]}`,
			},
		},
		Prefixes: map[string]runner.Response{
			"lsblk -J": {Stdout: tree},
		},
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	for _, token := range []string{"skip", "wipe", "discard", "random"} {
		p, err := ParsePolicy(token)
		require.NoError(t, err)
		assert.Equal(t, Policy(token), p)
	}

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyWipe, p)

	_, err = ParsePolicy("nuke")
	var verr *plan.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTeardownSkipPolicyDoesNothing(t *testing.T) {
	t.Parallel()
	rec := &runner.Recorder{}
	s := &Sequencer{Runner: rec, Policy: PolicySkip}

	attempted, err := s.Teardown(context.Background(), []string{"/dev/sdb"})
	require.NoError(t, err)
	assert.Nil(t, attempted)
	assert.Empty(t, rec.Calls)
}

func TestTeardownFullStackOrdering(t *testing.T) {
	t.Parallel()
	rec := stackRecorder()
	s := &Sequencer{Runner: rec, Policy: PolicyWipe}

	attempted, err := s.Teardown(context.Background(), []string{"/dev/sdb"})
	require.NoError(t, err)
	require.NotEmpty(t, attempted)

	umount := rec.IndexOf("umount", "/mnt/data")
	lvDown := rec.IndexOf("lvchange", "-an", "main/slash")
	vgDown := rec.IndexOf("vgchange", "-an", "main")
	mdStop := rec.IndexOf("mdadm", "--stop", "/dev/md0")
	lvGone := rec.IndexOf("lvremove", "-fy", "main/slash")
	vgGone := rec.IndexOf("vgremove", "-ff", "-y", "main")
	pvGone := rec.IndexOf("pvremove", "-ff", "-y", "/dev/md0")
	zero := rec.IndexOf("mdadm", "--zero-superblock", "--force", "/dev/sdb1")
	zap := rec.IndexOf("sgdisk", "--zap-all", "/dev/sdb")

	for name, idx := range map[string]int{
		"umount": umount, "lvchange": lvDown, "vgchange": vgDown,
		"mdadm --stop": mdStop, "lvremove": lvGone, "vgremove": vgGone,
		"pvremove": pvGone, "zero-superblock": zero, "sgdisk": zap,
	} {
		require.GreaterOrEqual(t, idx, 0, "%s never ran", name)
	}

	assert.Less(t, umount, lvDown)
	assert.Less(t, lvDown, vgDown)
	assert.Less(t, vgDown, mdStop)
	assert.Less(t, mdStop, lvGone)
	assert.Less(t, lvGone, vgGone)
	assert.Less(t, vgGone, pvGone)
	assert.Less(t, pvGone, zero)
	assert.Less(t, zero, zap)

	assert.True(t, rec.CalledWith("wipefs", "-a", "/dev/main/slash"))
	assert.True(t, rec.CalledWith("wipefs", "-a", "/dev/sdb1"))
	assert.True(t, rec.CalledWith("wipefs", "-a", "/dev/sdb"))
	assert.True(t, rec.CalledWith("udevadm", "settle"))
}

func TestTeardownCleanDiskTouchesOnlyTheDisk(t *testing.T) {
	t.Parallel()
	rec := &runner.Recorder{
		Responses: map[string]runner.Response{
			"pvs -o pv_name,vg_name --reportformat json":         {Stdout: emptyLVMReport},
			"lvs -o lv_name,vg_name,lv_path --reportformat json": {Stdout: emptyLVMReport},
		},
		Prefixes: map[string]runner.Response{
			"lsblk -J": {Stdout: `{"blockdevices": [{"name": "sdb", "path": "/dev/sdb", "type": "disk", "mountpoints": [null]}]}`},
		},
	}
	s := &Sequencer{Runner: rec, Policy: PolicyWipe}

	attempted, err := s.Teardown(context.Background(), []string{"/dev/sdb"})
	require.NoError(t, err)

	want := [][]string{
		{"sgdisk", "--zap-all", "/dev/sdb"},
		{"blockdev", "--rereadpt", "/dev/sdb"},
		{"partprobe", "/dev/sdb"},
		{"udevadm", "settle"},
		{"wipefs", "-a", "/dev/sdb"},
	}
	require.Len(t, attempted, len(want))
	for i, argv := range want {
		assert.Equal(t, argv, attempted[i].Argv)
	}
}

func TestTeardownPolicyExtras(t *testing.T) {
	t.Parallel()
	tests := []struct {
		policy Policy
		extra  []string
	}{
		{PolicyDiscard, []string{"blkdiscard", "-f", "/dev/sdb"}},
		{PolicyRandom, []string{"shred", "-v", "-n1", "/dev/sdb"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.policy), func(t *testing.T) {
			t.Parallel()
			rec := stackRecorder()
			s := &Sequencer{Runner: rec, Policy: tt.policy}

			_, err := s.Teardown(context.Background(), []string{"/dev/sdb"})
			require.NoError(t, err)

			extra := rec.IndexOf(tt.extra...)
			final := rec.IndexOf("wipefs", "-a", "/dev/sdb")
			require.GreaterOrEqual(t, extra, 0)
			assert.Less(t, rec.IndexOf("udevadm", "settle"), extra)
			assert.Less(t, extra, final, "policy pass runs before the final signature wipe")
		})
	}
}

func TestTeardownContinuesPastFailures(t *testing.T) {
	t.Parallel()
	rec := stackRecorder()
	rec.Responses["umount /mnt/data"] = runner.Response{Code: 32, Stderr: "target is busy"}
	s := &Sequencer{Runner: rec, Policy: PolicyWipe}

	attempted, err := s.Teardown(context.Background(), []string{"/dev/sdb"})
	require.NoError(t, err)

	var sawFailure bool
	for _, c := range attempted {
		if c.Code == 32 {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure, "failed command must still be in the attempted list")
	assert.True(t, rec.CalledWith("sgdisk", "--zap-all", "/dev/sdb"), "sequence continues after a failure")
}

func TestTeardownAbortsOnDiscoveryFailure(t *testing.T) {
	t.Parallel()
	rec := &runner.Recorder{Prefixes: map[string]runner.Response{
		"lsblk": {Code: 1, Stderr: "boom"},
	}}
	s := &Sequencer{Runner: rec, Policy: PolicyWipe}

	_, err := s.Teardown(context.Background(), []string{"/dev/sdb"})
	require.Error(t, err)
	assert.False(t, rec.CalledWith("sgdisk", "--zap-all", "/dev/sdb"))
}

func TestTeardownStackedLVMUnwindsTopDown(t *testing.T) {
	t.Parallel()
	rec := stackRecorder()
	// nested VG whose PV is a logical volume of main
	rec.Responses["pvs -o pv_name,vg_name --reportformat json"] = runner.Response{
		Stdout: `{"report": [{"pv": [
			{"pv_name": "/dev/md0", "vg_name": "main"},
			{"pv_name": "/dev/main/inner", "vg_name": "nested"}
		]}]}`,
	}
	rec.Responses["lvs -o lv_name,vg_name,lv_path --reportformat json"] = runner.Response{
		Stdout: `{"report": [{"lv": [
			{"lv_name": "slash", "vg_name": "main", "lv_path": "/dev/main/slash"},
			{"lv_name": "inner", "vg_name": "main", "lv_path": "/dev/main/inner"},
			{"lv_name": "top", "vg_name": "nested", "lv_path": "/dev/nested/top"}
		]}]}`,
	}
	s := &Sequencer{Runner: rec, Policy: PolicyWipe}

	_, err := s.Teardown(context.Background(), []string{"/dev/sdb"})
	require.NoError(t, err)

	assert.Less(t, rec.IndexOf("lvchange", "-an", "nested/top"), rec.IndexOf("lvchange", "-an", "main/slash"))
	assert.Less(t, rec.IndexOf("vgchange", "-an", "nested"), rec.IndexOf("vgchange", "-an", "main"))
	assert.Less(t, rec.IndexOf("vgremove", "-ff", "-y", "nested"), rec.IndexOf("vgremove", "-ff", "-y", "main"))
}

func TestTeardownEmptyTargetList(t *testing.T) {
	t.Parallel()
	rec := &runner.Recorder{}
	s := &Sequencer{Runner: rec, Policy: PolicyWipe}

	attempted, err := s.Teardown(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, attempted)
	assert.Empty(t, rec.Calls)
}
