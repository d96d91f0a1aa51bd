// Package kube reads the running instance inventory from the nodes of a
// Kubernetes cluster.
package kube

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/guimove/ricover/internal/inventory"
	"github.com/guimove/ricover/internal/model"
)

const listPageSize = 500

// NodeSource reports every on-demand node of a cluster as a running instance.
// It implements inventory.Source.
type NodeSource struct {
	client  kubernetes.Interface
	context string
	log     logr.Logger
	now     func() time.Time
}

var _ inventory.Source = (*NodeSource)(nil)

// NewNodeSource wraps an existing clientset.
func NewNodeSource(client kubernetes.Interface, kubeContext string, log logr.Logger) *NodeSource {
	return &NodeSource{client: client, context: kubeContext, log: log, now: time.Now}
}

// Ping checks that nodes can be listed.
func (s *NodeSource) Ping(ctx context.Context) error {
	if _, err := s.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1}); err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	return nil
}

// BackendType returns "kubernetes".
func (s *NodeSource) BackendType() string {
	return "kubernetes"
}

// Collect lists nodes page by page. Spot nodes and nodes missing instance
// type or zone labels are skipped.
func (s *NodeSource) Collect(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{CollectedAt: s.now().UTC()}

	opts := metav1.ListOptions{Limit: listPageSize}
	skipped := 0
	for {
		list, err := s.client.CoreV1().Nodes().List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing nodes: %w", err)
		}
		for i := range list.Items {
			node := &list.Items[i]
			raw, ok := inventory.NodeInstance(node.Name, node.Labels)
			if !ok {
				skipped++
				continue
			}
			snap.Instances = append(snap.Instances, raw)
		}
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}

	s.log.V(1).Info("listed cluster nodes", "context", s.context,
		"instances", len(snap.Instances), "skipped", skipped)

	if len(snap.Instances) == 0 {
		return nil, inventory.ErrNoNodesFound
	}
	return snap, nil
}
