package clustersync_test

import (
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/clustersync"
	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

func TestDiffNodesClassifiesNewUpdatedAndVanished(t *testing.T) {
	g := NewWithT(t)

	clusterID := uuid.New()
	existingID := uuid.New()
	existing := []fleet.ClusterNode{
		{ID: existingID, ClusterID: clusterID, Hostname: "robot-01", IsAlive: true},
		{ID: uuid.New(), ClusterID: clusterID, Hostname: "robot-gone", IsAlive: true},
	}
	live := []k8sexec.NodeView{
		{Hostname: "robot-01", Ready: true, Labels: map[string]string{"a": "b"}},
		{Hostname: "robot-02", Ready: true, Labels: map[string]string{"c": "d"}},
	}

	snap := clustersync.DiffNodes(clusterID, live, existing)

	g.Expect(snap.NewNodes).To(HaveLen(1))
	g.Expect(snap.NewNodes[0].Hostname).To(Equal("robot-02"))
	g.Expect(snap.NewNodes[0].Role).To(Equal(fleet.RoleUnassigned))

	g.Expect(snap.UpdatedNodes).To(HaveLen(1))
	g.Expect(snap.UpdatedNodes[0].ID).To(Equal(existingID))
	g.Expect(snap.UpdatedNodes[0].Labels).To(HaveKeyWithValue("a", "b"))

	g.Expect(snap.VanishedNodes).To(HaveLen(1))
	g.Expect(snap.VanishedNodes[0].Hostname).To(Equal("robot-gone"))
	g.Expect(snap.VanishedNodes[0].IsAlive).To(BeFalse())
}

func TestIsLabelSynced(t *testing.T) {
	g := NewWithT(t)

	fleetID := uuid.New()
	node := fleet.FleetNode{FleetID: fleetID, OnboardCompGroup: "cg1", RobotName: "robot-01", RobotID: "R-01", Hostname: "robot-01"}
	expected := clustersync.ExpectedLabels("fleet-1", node, fleet.ClusterNode{})

	g.Expect(clustersync.IsLabelSynced(expected, expected)).To(BeTrue())

	partial := map[string]string{clustersync.LabelFleetUUID: fleetID.String()}
	g.Expect(clustersync.IsLabelSynced(partial, expected)).To(BeFalse())
}

func TestAttachMetrics(t *testing.T) {
	g := NewWithT(t)

	nodes := []fleet.ClusterNode{{Hostname: "n1"}}
	metrics := []k8sexec.NodeMetricsSample{{Hostname: "n1", CPUAllocatable: 4, CPUUsageCores: 1.5, MemoryAllocatableB: 1000, MemoryUsageB: 100}}

	out := clustersync.AttachMetrics(nodes, metrics)
	g.Expect(out[0].CPUAllocatableCores).To(Equal(4.0))
	g.Expect(out[0].CPUUsageCores).To(Equal(1.5))
}

func TestRecomputeLabelSyncOnlyTouchesBoundNodes(t *testing.T) {
	g := NewWithT(t)

	clusterNodeID := uuid.New()
	fleetID := uuid.New()
	fn := fleet.FleetNode{FleetID: fleetID, ClusterNodeID: clusterNodeID, OnboardCompGroup: "cg1", RobotName: "r1", RobotID: "R1", Hostname: "h1"}
	expected := clustersync.ExpectedLabels("fleet-1", fn, fleet.ClusterNode{ID: clusterNodeID})

	nodes := []fleet.ClusterNode{
		{ID: clusterNodeID, Labels: expected},
		{ID: uuid.New(), Labels: map[string]string{}},
	}

	out := clustersync.RecomputeLabelSync(nodes, map[uuid.UUID]string{fleetID: "fleet-1"}, map[uuid.UUID]fleet.FleetNode{clusterNodeID: fn})
	g.Expect(out[0].IsLabelSynced).To(BeTrue())
	g.Expect(out[1].IsLabelSynced).To(BeFalse())
}
