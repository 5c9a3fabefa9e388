// Package kubernetes acquires python sandboxes through agent-sandbox
// SandboxClaim resources. Each execution gets its own claim, which is
// deleted again once the execution finishes.
package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/rhuss/analyst/pkg/tools/sandbox"
)

var _ sandbox.Acquirer = (*ClaimAcquirer)(nil)

const (
	managedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "analyst"
)

// Config configures a ClaimAcquirer.
type Config struct {
	// Template is the SandboxTemplate referenced by each claim.
	Template string

	// Namespace holds the claims.
	Namespace string

	// ClaimTimeout bounds the wait for a claimed Sandbox to become ready.
	ClaimTimeout time.Duration

	// PollInterval is the Sandbox status polling period. Default 500ms.
	PollInterval time.Duration

	// Port is the sandbox server port. Default 8080.
	Port int
}

// ClaimAcquirer creates a SandboxClaim per acquisition and returns the
// bound Sandbox's service address.
type ClaimAcquirer struct {
	client client.Client
	cfg    Config
	logger *slog.Logger
}

// NewClaimAcquirer creates a ClaimAcquirer.
func NewClaimAcquirer(c client.Client, cfg Config) (*ClaimAcquirer, error) {
	if cfg.Template == "" {
		return nil, errors.New("kubernetes: sandbox template is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &ClaimAcquirer{
		client: c,
		cfg:    cfg,
		logger: slog.Default().With("component", "sandbox-claims"),
	}, nil
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Acquire claims a sandbox and waits until it is ready. The returned
// release function deletes the claim and may be called more than once.
func (a *ClaimAcquirer) Acquire(ctx context.Context) (string, func(), error) {
	name := newClaimName()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: a.cfg.Namespace,
			Labels:    map[string]string{managedByLabel: managedByValue},
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{Name: a.cfg.Template},
		},
	}
	if err := a.client.Create(ctx, claim); err != nil {
		return "", nil, fmt.Errorf("create SandboxClaim %q: %w", name, err)
	}
	a.logger.Debug("created claim", "name", name, "template", a.cfg.Template)

	var once sync.Once
	release := func() {
		once.Do(func() { a.deleteClaim(name) })
	}

	fqdn, err := a.waitForReady(ctx, name)
	if err != nil {
		release()
		return "", nil, err
	}

	url := fmt.Sprintf("http://%s:%d", fqdn, a.cfg.Port)
	a.logger.Debug("sandbox ready", "name", name, "url", url)
	return url, release, nil
}

// waitForReady polls the Sandbox named after the claim until it reports
// Ready with a service address.
func (a *ClaimAcquirer) waitForReady(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ClaimTimeout)
	defer cancel()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	key := types.NamespacedName{Name: name, Namespace: a.cfg.Namespace}
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("sandbox %q not ready after %s", name, a.cfg.ClaimTimeout)
			}
			return "", fmt.Errorf("waiting for sandbox %q: %w", name, ctx.Err())
		case <-ticker.C:
			sb := &sandboxv1alpha1.Sandbox{}
			if err := a.client.Get(ctx, key, sb); err != nil {
				// The controller has not created the Sandbox yet.
				continue
			}
			if isReady(sb) && sb.Status.ServiceFQDN != "" {
				return sb.Status.ServiceFQDN, nil
			}
		}
	}
}

func isReady(sb *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sb.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) {
			return c.Status == metav1.ConditionTrue
		}
	}
	return false
}

// deleteClaim runs detached from the request context so that cancelled
// requests still clean up.
func (a *ClaimAcquirer) deleteClaim(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: a.cfg.Namespace},
	}
	if err := a.client.Delete(ctx, claim); err != nil {
		a.logger.Warn("failed to delete claim", "name", name, "error", err.Error())
		return
	}
	a.logger.Debug("deleted claim", "name", name)
}

// newClaimName is replaced in tests.
var newClaimName = func() string {
	return "analyst-py-" + uuid.NewString()[:8]
}
