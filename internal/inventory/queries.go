package inventory

// PromQL for the node inventory. Requires kube-state-metrics with the
// instance type, zone, os and capacity-type labels allowlisted
// (--metric-labels-allowlist=nodes=[...]).

// queryOnDemandNodes counts nodes per instance type, zone and os, leaving out
// nodes labelled as spot by Karpenter, EKS managed node groups or the
// lifecycle label.
const queryOnDemandNodes = `count by (
  label_node_kubernetes_io_instance_type,
  label_topology_kubernetes_io_zone,
  label_kubernetes_io_os
) (
  kube_node_labels{
    label_karpenter_sh_capacity_type!="spot",
    label_eks_amazonaws_com_capacity_type!="SPOT",
    label_node_kubernetes_io_lifecycle!="spot"
  }
)`

// Sanitized label names as exported by kube-state-metrics.
const (
	promLabelInstanceType = "label_node_kubernetes_io_instance_type"
	promLabelZone         = "label_topology_kubernetes_io_zone"
	promLabelOS           = "label_kubernetes_io_os"
)
