package kube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"apartment-valuation-service/internal/config"
	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

const pointerDataKey = "pointer.json"

type configMapPointer struct {
	client    kubernetes.Interface
	namespace string
	name      string
}

// NewClientset builds a typed clientset from the in-cluster config, an explicit
// kubeconfig, or ~/.kube/config.
func NewClientset(cfg *config.KubernetesConfig) (kubernetes.Interface, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		restCfg, err = clientcmd.BuildConfigFromFlags("", filepath.Join(home, ".kube", "config"))
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return client, nil
}

// NewConfigMapPointerRepository keeps the production pointer in a ConfigMap.
// Concurrent promotions are serialized by the API server through resourceVersion.
func NewConfigMapPointerRepository(client kubernetes.Interface, namespace, name string) ports.PointerRepository {
	if namespace == "" {
		namespace = "default"
	}
	if name == "" {
		name = "valuation-production-model"
	}
	return &configMapPointer{client: client, namespace: namespace, name: name}
}

func (r *configMapPointer) Get(ctx context.Context) (*domain.ProductionPointer, error) {
	cm, err := r.client.CoreV1().ConfigMaps(r.namespace).Get(ctx, r.name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, domain.ErrNoProductionPointer
		}
		return nil, fmt.Errorf("get configmap %s/%s: %w", r.namespace, r.name, err)
	}
	return decodePointer(cm)
}

func (r *configMapPointer) CompareAndSwap(ctx context.Context, expectedVersion int64, next *domain.ProductionPointer) (*domain.ProductionPointer, error) {
	configMaps := r.client.CoreV1().ConfigMaps(r.namespace)

	cm, err := configMaps.Get(ctx, r.name, metav1.GetOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("get configmap %s/%s: %w", r.namespace, r.name, err)
	}
	exists := err == nil

	var current int64
	if exists {
		p, err := decodePointer(cm)
		switch {
		case err == nil:
			current = p.Version
		case errors.Is(err, domain.ErrNoProductionPointer):
		default:
			return nil, err
		}
	}
	if current != expectedVersion {
		return nil, domain.ErrPromotionConflict
	}

	stored := *next
	stored.Version = current + 1
	body, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("marshal production pointer: %w", err)
	}

	if !exists {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      r.name,
				Namespace: r.namespace,
				Labels:    map[string]string{"app.kubernetes.io/managed-by": "apartment-valuation-service"},
			},
			Data: map[string]string{pointerDataKey: string(body)},
		}
		if _, err := configMaps.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			if apierrors.IsAlreadyExists(err) {
				return nil, domain.ErrPromotionConflict
			}
			return nil, fmt.Errorf("create configmap %s/%s: %w", r.namespace, r.name, err)
		}
		return &stored, nil
	}

	updated := cm.DeepCopy()
	if updated.Data == nil {
		updated.Data = map[string]string{}
	}
	updated.Data[pointerDataKey] = string(body)
	// the fetched resourceVersion rides along, so a concurrent writer makes this fail
	if _, err := configMaps.Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		if apierrors.IsConflict(err) {
			return nil, domain.ErrPromotionConflict
		}
		return nil, fmt.Errorf("update configmap %s/%s: %w", r.namespace, r.name, err)
	}
	return &stored, nil
}

func decodePointer(cm *corev1.ConfigMap) (*domain.ProductionPointer, error) {
	raw, ok := cm.Data[pointerDataKey]
	if !ok || raw == "" {
		return nil, domain.ErrNoProductionPointer
	}
	var p domain.ProductionPointer
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode configmap pointer: %w", err)
	}
	return &p, nil
}
