// Package inventory provides sources of running instances and reservations
// other than the EC2 API: snapshot files, Prometheus and Kubernetes nodes.
package inventory

import (
	"context"
	"errors"

	"github.com/guimove/ricover/internal/model"
)

var (
	ErrPrometheusUnreachable = errors.New("prometheus endpoint unreachable")
	ErrNoNodesFound          = errors.New("no on-demand nodes found")
)

// Source abstracts the collection of an inventory snapshot.
type Source interface {
	// Collect gathers running instances and, when the backend knows them,
	// reservations.
	Collect(ctx context.Context) (*model.Snapshot, error)

	// Ping validates connectivity to the backend.
	Ping(ctx context.Context) error

	// BackendType returns the backend name.
	BackendType() string
}

// Well-known node labels.
const (
	LabelInstanceType      = "node.kubernetes.io/instance-type"
	LabelInstanceTypeBeta  = "beta.kubernetes.io/instance-type"
	LabelZone              = "topology.kubernetes.io/zone"
	LabelZoneBeta          = "failure-domain.beta.kubernetes.io/zone"
	LabelOS                = "kubernetes.io/os"
	LabelKarpenterCapacity = "karpenter.sh/capacity-type"
	LabelEKSCapacity       = "eks.amazonaws.com/capacity-type"
	LabelLifecycle         = "node.kubernetes.io/lifecycle"
)

// nodeVPC stands in for the VPC id of Kubernetes nodes, which always run
// inside a VPC.
const nodeVPC = "node-vpc"

func firstLabel(labels map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := labels[k]; v != "" {
			return v
		}
	}
	return ""
}

// IsSpotNode reports whether node labels mark spot capacity.
func IsSpotNode(labels map[string]string) bool {
	switch {
	case labels[LabelKarpenterCapacity] == "spot",
		labels[LabelEKSCapacity] == "SPOT",
		labels[LabelLifecycle] == "spot":
		return true
	}
	return false
}

// NodeInstance converts node labels into a running instance. It returns false
// for spot nodes and nodes without instance type or zone labels.
func NodeInstance(name string, labels map[string]string) (model.RawInstance, bool) {
	if IsSpotNode(labels) {
		return model.RawInstance{}, false
	}
	instanceType := firstLabel(labels, LabelInstanceType, LabelInstanceTypeBeta)
	zone := firstLabel(labels, LabelZone, LabelZoneBeta)
	if instanceType == "" || zone == "" {
		return model.RawInstance{}, false
	}

	raw := model.RawInstance{
		InstanceID:       name,
		InstanceType:     instanceType,
		AvailabilityZone: zone,
		Tenancy:          model.TenancyDefault,
		VPCID:            nodeVPC,
		State:            "running",
	}
	if labels[LabelOS] == "windows" {
		raw.Platform = "windows"
	}
	return raw, true
}
