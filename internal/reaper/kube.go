package reaper

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/flowcontrol"
)

// KubeJobClient implements JobClient over the batch/v1 Jobs API.
type KubeJobClient struct {
	client kubernetes.Interface
}

func NewKubeJobClient(client kubernetes.Interface) *KubeJobClient {
	return &KubeJobClient{client: client}
}

func (c *KubeJobClient) ListPage(ctx context.Context, namespace string, limit int64, cont string) (JobPage, error) {
	list, err := c.client.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{Limit: limit, Continue: cont})
	if err != nil {
		return JobPage{}, errors.Wrapf(err, "listing jobs in %s", namespace)
	}
	page := JobPage{Jobs: make([]Job, 0, len(list.Items)), Continue: list.Continue}
	for i := range list.Items {
		page.Jobs = append(page.Jobs, fromKube(&list.Items[i]))
	}
	return page, nil
}

func (c *KubeJobClient) Get(ctx context.Context, namespace, name string) (Job, error) {
	job, err := c.client.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return Job{}, errors.Wrapf(err, "reading job %s/%s", namespace, name)
	}
	return fromKube(job), nil
}

// Delete removes the job and, through foreground propagation, its pods, with no grace period.
func (c *KubeJobClient) Delete(ctx context.Context, namespace, name string) error {
	err := c.client.BatchV1().Jobs(namespace).Delete(ctx, name, deleteOptions())
	if err != nil {
		return errors.Wrapf(err, "deleting job %s/%s", namespace, name)
	}
	return nil
}

func deleteOptions() metav1.DeleteOptions {
	gracePeriod := int64(0)
	propagation := metav1.DeletePropagationForeground
	return metav1.DeleteOptions{
		GracePeriodSeconds: &gracePeriod,
		PropagationPolicy:  &propagation,
	}
}

func fromKube(j *batchv1.Job) Job {
	job := Job{
		Name:      j.Name,
		Namespace: j.Namespace,
		Succeeded: int(j.Status.Succeeded),
	}
	if j.Status.CompletionTime != nil {
		t := j.Status.CompletionTime.Time
		job.CompletionTime = &t
	}
	return job
}

// NewKubeClient builds a clientset from the given kubeconfig, or from the in-cluster config with the
// default loading rules as fallback when kubeconfig is empty. All calls share one token bucket.
func NewKubeClient(kubeconfig string, qps float32, burst int, logger log.FieldLogger) (kubernetes.Interface, error) {
	if qps <= 0 {
		return nil, errors.Errorf("qps must be positive, got %v", qps)
	}
	if burst <= 0 {
		return nil, errors.Errorf("burst must be positive, got %d", burst)
	}

	restConfig, err := loadConfig(kubeconfig, logger)
	if err != nil {
		return nil, errors.Wrap(err, "loading kubernetes client configuration")
	}
	restConfig.RateLimiter = flowcontrol.NewTokenBucketRateLimiter(qps, burst)
	restConfig.Timeout = 30 * time.Second

	return kubernetes.NewForConfig(restConfig)
}

func loadConfig(kubeconfig string, logger log.FieldLogger) (*rest.Config, error) {
	if kubeconfig != "" {
		logger.Infof("Running with kubeconfig %s", kubeconfig)
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	config, err := rest.InClusterConfig()
	if err == rest.ErrNotInCluster {
		logger.Info("Running with default client configuration")
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		overrides := &clientcmd.ConfigOverrides{}
		return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	}
	logger.Info("Running with in cluster client configuration")
	return config, err
}
