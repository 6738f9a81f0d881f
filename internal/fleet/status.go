package fleet

// DeriveStatus computes a Fleet's status deterministically from the statuses of its bound
// FleetNodes, following the original's FleetState.get_fleet_status (fleet.py), which folds
// per-node deployment state into a single fleet-wide state rather than storing it directly.
//
// Precedence, highest first:
//  1. any node in FleetNodeError                    -> FleetStatusError
//  2. any node deploying or releasing                -> FleetStatusInProgress
//  3. no nodes bound at all                          -> FleetStatusPending
//  4. no node is deployable or active                -> FleetStatusPending (all offline/unknown/deactivated)
//  5. every deployable-or-active node is active       -> FleetStatusFullyUsed
//  6. no node is active                               -> FleetStatusIdle
//  7. otherwise (some active, some still deployable)  -> FleetStatusPartiallyUsed
func DeriveStatus(nodes []FleetNode) FleetStatus {
	if len(nodes) == 0 {
		return FleetStatusPending
	}

	var deployable, active, deploying, releasing, errored int
	for _, n := range nodes {
		switch n.Status {
		case FleetNodeError:
			errored++
		case FleetNodeDeploying:
			deploying++
		case FleetNodeReleasing:
			releasing++
		case FleetNodeDeployable:
			deployable++
		case FleetNodeActive:
			active++
		}
	}

	switch {
	case errored > 0:
		return FleetStatusError
	case deploying > 0 || releasing > 0:
		return FleetStatusInProgress
	case deployable == 0 && active == 0:
		return FleetStatusPending
	case deployable == 0 && active > 0:
		return FleetStatusFullyUsed
	case active == 0:
		return FleetStatusIdle
	default:
		return FleetStatusPartiallyUsed
	}
}

// IsDeployable reports whether the fleet currently has at least one node available to take a
// new deployment, mirroring the original's FleetState.is_fleet_deployable.
func IsDeployable(nodes []FleetNode) bool {
	for _, n := range nodes {
		if n.Status == FleetNodeDeployable {
			return true
		}
	}
	return false
}

// ComputerGroups buckets fleet nodes by their onboard computer group, following the
// original's FleetState.node_group dict built in __init__.
func ComputerGroups(nodes []FleetNode) map[string][]FleetNode {
	groups := make(map[string][]FleetNode)
	for _, n := range nodes {
		groups[n.OnboardCompGroup] = append(groups[n.OnboardCompGroup], n)
	}
	return groups
}

// RobotNames returns the distinct robot names bound into the fleet, following the original's
// FleetState.robot_names.
func RobotNames(nodes []FleetNode) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, n := range nodes {
		if n.RobotName == "" {
			continue
		}
		if _, ok := seen[n.RobotName]; ok {
			continue
		}
		seen[n.RobotName] = struct{}{}
		names = append(names, n.RobotName)
	}
	return names
}
