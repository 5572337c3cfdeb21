package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultEnvFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	return path
}

func TestLoadEnv_FromFile(t *testing.T) {
	path := writeEnvFile(t, "AWS_PROFILE_NAME=loadtest\nSNS_TOPIC_NAME=arn:aws:sns:us-east-1:123:argo\nSQS_QUEUE_NAME=argo-queue\n")

	env, err := LoadEnv(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env[EnvAWSProfile] != "loadtest" {
		t.Errorf("expected profile loadtest, got %q", env[EnvAWSProfile])
	}
	if env[EnvSQSQueue] != "argo-queue" {
		t.Errorf("expected queue argo-queue, got %q", env[EnvSQSQueue])
	}
}

func TestLoadEnv_ProcessEnvironmentWins(t *testing.T) {
	path := writeEnvFile(t, "SQS_QUEUE_NAME=from-file\n")
	t.Setenv(EnvSQSQueue, "from-env")

	env, err := LoadEnv(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env[EnvSQSQueue] != "from-env" {
		t.Errorf("expected from-env, got %q", env[EnvSQSQueue])
	}
}

func TestLoadEnv_MissingFile(t *testing.T) {
	t.Setenv(EnvRedisAddr, "redis:6379")

	env, err := LoadEnv(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env[EnvRedisAddr] != "redis:6379" {
		t.Errorf("expected redis addr from environment, got %q", env[EnvRedisAddr])
	}
}

func TestEnv_Apply(t *testing.T) {
	cfg := Default()
	cfg.Broadcast.Kind = KindKafka
	cfg.Queue.Kind = KindSQS

	Env{
		EnvKafkaBrokers: "k1:9092, k2:9092,",
		EnvSQSQueue:     "argo-queue",
		EnvSNSTopic:     "ignored-for-kafka",
		EnvAWSRegion:    "eu-west-1",
		EnvKubeconfig:   "/tmp/kubeconfig",
	}.Apply(cfg)

	if len(cfg.Broadcast.Brokers) != 2 || cfg.Broadcast.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Broadcast.Brokers)
	}
	if cfg.Broadcast.Topic != "" {
		t.Errorf("sns topic must not leak into kafka config, got %q", cfg.Broadcast.Topic)
	}
	if cfg.Queue.Name != "argo-queue" {
		t.Errorf("expected queue name, got %q", cfg.Queue.Name)
	}
	if cfg.AWS.Region != "eu-west-1" || cfg.Reaper.Kubeconfig != "/tmp/kubeconfig" {
		t.Errorf("unexpected aws/reaper overrides: %+v %+v", cfg.AWS, cfg.Reaper)
	}
}
