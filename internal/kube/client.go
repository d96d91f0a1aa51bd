package kube

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClient builds a clientset. The kubeconfig is resolved from the explicit
// path, then $KUBECONFIG, then ~/.kube/config; without any of them the
// in-cluster config is used. The returned string is the context in effect.
func NewClient(kubeconfig, kubeContext string) (*kubernetes.Clientset, string, error) {
	cfg, current, err := restConfig(kubeconfig, kubeContext)
	if err != nil {
		return nil, "", fmt.Errorf("building kubernetes config: %w", err)
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("creating kubernetes client: %w", err)
	}
	return client, current, nil
}

func kubeconfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".kube", "config")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func restConfig(kubeconfig, kubeContext string) (*rest.Config, string, error) {
	path := kubeconfigPath(kubeconfig)
	if path == "" {
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, "", fmt.Errorf("no kubeconfig found and not running in-cluster: %w", err)
		}
		return cfg, "", nil
	}

	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: path},
		&clientcmd.ConfigOverrides{CurrentContext: kubeContext},
	)

	raw, err := loader.RawConfig()
	if err != nil {
		return nil, "", err
	}
	current := raw.CurrentContext
	if kubeContext != "" {
		current = kubeContext
	}

	cfg, err := loader.ClientConfig()
	if err != nil {
		return nil, "", err
	}
	return cfg, current, nil
}
