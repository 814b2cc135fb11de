package pyferris

import (
	"context"
	"net"
	"sort"
	"sync/atomic"

	"github.com/zoobzio/capitan"
)

// NodeStatus is a cluster node's observed availability.
type NodeStatus string

// Node statuses.
const (
	NodeActive  NodeStatus = "active"
	NodeBusy    NodeStatus = "busy"
	NodeOffline NodeStatus = "offline"
	NodeFailed  NodeStatus = "failed"
)

// NodeCapabilities describes what a cluster node can run.
type NodeCapabilities struct {
	CPUCores     int
	MemoryGB     float64
	GPUCount     int
	Specialized  []string
}

// ClusterNode is one manually-registered member of the cluster. Cluster
// membership is manually managed: there is no consensus, leader
// election, or failure detection.
type ClusterNode struct {
	ID           string
	Addr         *net.TCPAddr
	Capabilities NodeCapabilities
	Status       NodeStatus
	Load         float64
}

// ClusterManager is a process-local registry of cluster nodes. It holds
// no cross-references to an executor or balancer; both consume it by
// value (a snapshot of active nodes), never by cyclic ownership.
type ClusterManager struct {
	nodes *ConcurrentMap[string, *ClusterNode]
}

// NewClusterManager creates an empty ClusterManager.
func NewClusterManager() *ClusterManager {
	return &ClusterManager{nodes: NewConcurrentMap[string, *ClusterNode](fnv1aString)}
}

// AddNode registers or replaces a node. addr must be a parseable TCP
// address, e.g. "10.0.0.4:9000".
func (cm *ClusterManager) AddNode(id, addr string, caps NodeCapabilities) (*ClusterNode, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &Error{Kind: InvalidArgument, Err: err}
	}
	node := &ClusterNode{ID: id, Addr: tcpAddr, Capabilities: caps, Status: NodeActive}
	cm.nodes.Set(id, node)
	capitan.Info(context.Background(), SignalNodeJoined, FieldNodeID.Field(id))
	return node, nil
}

// RemoveNode unregisters a node.
func (cm *ClusterManager) RemoveNode(id string) {
	cm.nodes.Delete(id)
	capitan.Info(context.Background(), SignalNodeRemoved, FieldNodeID.Field(id))
}

// UpdateNodeLoad sets a node's reported load and, if status is
// non-empty, its status.
func (cm *ClusterManager) UpdateNodeLoad(id string, load float64, status NodeStatus) bool {
	node, ok := cm.nodes.Get(id)
	if !ok {
		return false
	}
	node.Load = load
	if status != "" {
		node.Status = status
	}
	capitan.Info(context.Background(), SignalNodeStatusSet, FieldNodeID.Field(id), FieldLoad.Field(load))
	return true
}

// ActiveNodes returns a snapshot of all nodes currently Active, ordered
// by ID.
func (cm *ClusterManager) ActiveNodes() []*ClusterNode {
	var out []*ClusterNode
	for _, n := range cm.nodes.Snapshot() {
		if n.Status == NodeActive {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClusterStats summarizes the registry.
type ClusterStats struct {
	TotalNodes  int
	ActiveNodes int
	TotalCores  int
	AverageLoad float64
}

// ClusterStats computes a snapshot summary across all registered nodes.
func (cm *ClusterManager) ClusterStats() ClusterStats {
	all := cm.nodes.Snapshot()
	stats := ClusterStats{TotalNodes: len(all)}
	var loadSum float64
	for _, n := range all {
		stats.TotalCores += n.Capabilities.CPUCores
		loadSum += n.Load
		if n.Status == NodeActive {
			stats.ActiveNodes++
		}
	}
	if len(all) > 0 {
		stats.AverageLoad = loadSum / float64(len(all))
	}
	return stats
}

// LoadBalancingStrategy selects a node among a set of candidates.
type LoadBalancingStrategy string

// Strategies.
const (
	StrategyRoundRobin LoadBalancingStrategy = "round_robin"
	StrategyLeastLoaded LoadBalancingStrategy = "least_loaded"
	StrategyWeighted    LoadBalancingStrategy = "weighted"
	StrategyCapability  LoadBalancingStrategy = "capability"
)

// Requirements is the resource floor a capability-matching selection
// must satisfy: cpu_cores, memory_gb, and an implicit load < 0.8.
type Requirements struct {
	CPUCores int
	MemoryGB float64
}

// LoadBalancer is a pure function over (nodes, requirements): it holds
// no reference to a ClusterManager, only the rotation cursor its own
// round-robin strategy needs. Construct one per logical balancing
// policy and call SelectNode with a fresh snapshot each time.
type LoadBalancer struct {
	strategy LoadBalancingStrategy
	cursor   atomic.Uint64
}

// NewLoadBalancer creates a LoadBalancer using strategy.
func NewLoadBalancer(strategy LoadBalancingStrategy) *LoadBalancer {
	return &LoadBalancer{strategy: strategy}
}

// SelectNode picks one node from candidates per the configured
// strategy. Only Active nodes are eligible; returns false if none
// qualify.
func (lb *LoadBalancer) SelectNode(candidates []*ClusterNode, req Requirements) (*ClusterNode, bool) {
	active := make([]*ClusterNode, 0, len(candidates))
	for _, n := range candidates {
		if n.Status == NodeActive {
			active = append(active, n)
		}
	}
	if len(active) == 0 {
		return nil, false
	}

	switch lb.strategy {
	case StrategyLeastLoaded:
		best := active[0]
		for _, n := range active[1:] {
			if n.Load < best.Load {
				best = n
			}
		}
		return best, true

	case StrategyWeighted:
		var best *ClusterNode
		var bestScore float64 = -1
		for _, n := range active {
			inverse := 1.0
			if n.Load > 0 {
				inverse = 1.0 / n.Load
			}
			score := inverse * float64(n.Capabilities.CPUCores)
			if score > bestScore {
				bestScore = score
				best = n
			}
		}
		return best, best != nil

	case StrategyCapability:
		for _, n := range active {
			if n.Capabilities.CPUCores >= req.CPUCores &&
				n.Capabilities.MemoryGB >= req.MemoryGB &&
				n.Load < 0.8 {
				return n, true
			}
		}
		return nil, false

	default: // StrategyRoundRobin
		idx := lb.cursor.Add(1) - 1
		return active[idx%uint64(len(active))], true
	}
}

// fnv1aString hashes a string with FNV-1a, used as the shard hash for
// ConcurrentMap instances keyed by node/task IDs.
func fnv1aString(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
