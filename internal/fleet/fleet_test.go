package fleet_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/fleet"
)

func TestDeriveStatus(t *testing.T) {
	g := NewWithT(t)

	g.Expect(fleet.DeriveStatus(nil)).To(Equal(fleet.FleetStatusPending))

	g.Expect(fleet.DeriveStatus([]fleet.FleetNode{
		{Status: fleet.FleetNodeOffline},
		{Status: fleet.FleetNodeUnknown},
	})).To(Equal(fleet.FleetStatusPending))

	g.Expect(fleet.DeriveStatus([]fleet.FleetNode{
		{Status: fleet.FleetNodeDeployable},
		{Status: fleet.FleetNodeDeployable},
	})).To(Equal(fleet.FleetStatusIdle))

	g.Expect(fleet.DeriveStatus([]fleet.FleetNode{
		{Status: fleet.FleetNodeActive},
		{Status: fleet.FleetNodeDeployable},
	})).To(Equal(fleet.FleetStatusPartiallyUsed))

	g.Expect(fleet.DeriveStatus([]fleet.FleetNode{
		{Status: fleet.FleetNodeActive},
		{Status: fleet.FleetNodeActive},
	})).To(Equal(fleet.FleetStatusFullyUsed))

	g.Expect(fleet.DeriveStatus([]fleet.FleetNode{
		{Status: fleet.FleetNodeActive},
		{Status: fleet.FleetNodeDeploying},
	})).To(Equal(fleet.FleetStatusInProgress))

	g.Expect(fleet.DeriveStatus([]fleet.FleetNode{
		{Status: fleet.FleetNodeActive},
		{Status: fleet.FleetNodeError},
	})).To(Equal(fleet.FleetStatusError))
}

func TestIsDeployable(t *testing.T) {
	g := NewWithT(t)

	g.Expect(fleet.IsDeployable(nil)).To(BeFalse())
	g.Expect(fleet.IsDeployable([]fleet.FleetNode{{Status: fleet.FleetNodeActive}})).To(BeFalse())
	g.Expect(fleet.IsDeployable([]fleet.FleetNode{
		{Status: fleet.FleetNodeActive},
		{Status: fleet.FleetNodeDeployable},
	})).To(BeTrue())
}

func TestComputerGroups(t *testing.T) {
	g := NewWithT(t)

	groups := fleet.ComputerGroups([]fleet.FleetNode{
		{OnboardCompGroup: "front", Hostname: "a"},
		{OnboardCompGroup: "front", Hostname: "b"},
		{OnboardCompGroup: "rear", Hostname: "c"},
	})
	g.Expect(groups).To(HaveLen(2))
	g.Expect(groups["front"]).To(HaveLen(2))
	g.Expect(groups["rear"]).To(HaveLen(1))
}

func TestRobotNames(t *testing.T) {
	g := NewWithT(t)

	names := fleet.RobotNames([]fleet.FleetNode{
		{RobotName: "r2d2"},
		{RobotName: "r2d2"},
		{RobotName: "c3po"},
		{RobotName: ""},
	})
	g.Expect(names).To(ConsistOf("r2d2", "c3po"))
}

func TestUppercaseParameter(t *testing.T) {
	g := NewWithT(t)

	d := fleet.PeripheralDevice{
		DeviceName: "lidar",
		Parameter:  map[string]string{"frame_id": "lidar_link", "port": "/dev/ttyUSB0"},
	}
	upper := d.UppercaseParameter()
	g.Expect(upper).To(HaveKeyWithValue("FRAME_ID", "lidar_link"))
	g.Expect(upper).To(HaveKeyWithValue("PORT", "/dev/ttyUSB0"))
}
