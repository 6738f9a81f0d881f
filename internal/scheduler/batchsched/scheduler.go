package batchsched

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/manifest"
)

const (
	podNamespace       = "default"
	discServerPort     = 11811
	discServerSvcPort  = 11311
	discoveryServImage = "eclipse-cyclonedds/cyclonedds-discovery-server:latest"
)

// PendingJob is one job awaiting placement plus the rendered manifest its group was expanded
// to and the group-level identifiers it needs (spec.md §4.4 Placement).
type PendingJob struct {
	Job                batchjob.KuberosJob
	GroupPostfix       string
	QueueNumber        int
	Manifest           *manifest.Manifest
	GroupDataInStorage bool
	VolumeBase         string
}

// JobPlacement is one job's materialised placement: discovery server pod+service tagged with
// the job slug, the module pod set, and the resolved volume spec (spec.md §4.4 step 3).
type JobPlacement struct {
	JobID              string
	NodeHostname       string
	DiscoveryServerPod k8sexec.PodSpec
	DiscoveryService   k8sexec.ServiceSpec
	ModulePods         []k8sexec.PodSpec
	ModuleRefs         []deployment.ModuleRef
	Volume             batchjob.VolumeSpec
}

// PlaceTick runs one scheduling tick (spec.md §4.4 steps 1-4): it filters nodes by
// allocatability, pops up to that many pending jobs in queue order, and builds a placement
// for each popped job pinned to the node it was popped against.
func PlaceTick(pending []PendingJob, nodes []NodeSnapshot, requestCPU, optimalCPU manifest.CPUQuantity, numProNode int) ([]JobPlacement, []PendingJob) {
	allocatable := AllocatableNodes(nodes, requestCPU.Cores(), numProNode)
	n := len(allocatable)
	if n > len(pending) {
		n = len(pending)
	}

	placements := make([]JobPlacement, 0, n)
	for i := 0; i < n; i++ {
		placements = append(placements, buildPlacement(pending[i], allocatable[i], requestCPU, optimalCPU))
	}
	return placements, pending[n:]
}

func buildPlacement(pj PendingJob, node NodeSnapshot, requestCPU, optimalCPU manifest.CPUQuantity) JobPlacement {
	slug := pj.Job.Slug
	discName := fmt.Sprintf("%s-disc-%s", pj.GroupPostfix, slug)

	discPod := k8sexec.PodSpec{
		Name:      discName,
		Namespace: podNamespace,
		Labels:    map[string]string{"kuberos-batch-job": slug},
		NodeSelector: map[string]string{
			"kubernetes.io/hostname": node.Hostname,
		},
		Image:           discoveryServImage,
		ImagePullPolicy: corev1.PullAlways,
		Command:         []string{"/bin/bash"},
		Args:            []string{"-c", fmt.Sprintf("fastdds discovery --server-id 0 --port %d -b", discServerPort)},
		Ports:           []corev1.ContainerPort{{ContainerPort: discServerPort, Protocol: corev1.ProtocolUDP}},
	}
	discSvc := k8sexec.ServiceSpec{
		Name:      discName,
		Namespace: podNamespace,
		Selector:  map[string]string{"kuberos-batch-job": slug},
		Ports: []corev1.ServicePort{{
			Port:       discServerSvcPort,
			TargetPort: intstr.FromInt32(discServerPort),
			Protocol:   corev1.ProtocolUDP,
		}},
		Type: corev1.ServiceTypeClusterIP,
	}

	budget := CPUBudget(node, requestCPU, optimalCPU)
	cpuQty := resource.NewMilliQuantity(int64(budget*1000), resource.DecimalSI)

	var modulePods []k8sexec.PodSpec
	var refs []deployment.ModuleRef
	for _, module := range pj.Manifest.RosModules {
		podName := ModulePodName(pj.GroupPostfix, module.Name, slug)
		modulePods = append(modulePods, k8sexec.PodSpec{
			Name:            podName,
			Namespace:       podNamespace,
			NodeSelector:    map[string]string{"kubernetes.io/hostname": node.Hostname},
			Image:           module.Image,
			ImagePullPolicy: corev1.PullAlways,
			Command:         []string{"/bin/bash"},
			Args:            []string{"-c", fmt.Sprintf("export ROS_DISCOVERY_SERVER=%s:%d; %s", discName, discServerSvcPort, joinEntrypoint(module.Entrypoint))},
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceCPU: *cpuQty},
			},
		})
		refs = append(refs, deployment.ModuleRef{ModuleName: module.Name, PodName: podName, Namespace: podNamespace})
	}

	volume := batchjob.VolumeSpec{}
	volume.SubPath = VolumeSubPath(pj.VolumeBase, pj.GroupDataInStorage, pj.QueueNumber, slug)

	return JobPlacement{
		JobID:              pj.Job.ID.String(),
		NodeHostname:       node.Hostname,
		DiscoveryServerPod: discPod,
		DiscoveryService:   discSvc,
		ModulePods:         modulePods,
		ModuleRefs:         refs,
		Volume:             volume,
	}
}

func joinEntrypoint(entrypoint []string) string {
	return strings.Join(entrypoint, " ")
}
