package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read from the working directory when no other file is named.
const DefaultEnvFile = "load_test_config.env"

// Environment keys understood by LoadEnv.
const (
	EnvAWSProfile      = "AWS_PROFILE_NAME"
	EnvAWSRegion       = "AWS_REGION"
	EnvAWSCredentials  = "AWS_CFG_PATH"
	EnvSNSTopic        = "SNS_TOPIC_NAME"
	EnvSQSQueue        = "SQS_QUEUE_NAME"
	EnvKafkaBrokers    = "KAFKA_BROKERS"
	EnvRabbitMQURL     = "RABBITMQ_URL"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvPulsarURL       = "PULSAR_URL"
	EnvNATSURL         = "NATS_URL"
	EnvKubeconfig      = "KUBECONFIG"
	EnvReaperNamespace = "REAPER_NAMESPACE"
)

var envKeys = []string{
	EnvAWSProfile, EnvAWSRegion, EnvAWSCredentials, EnvSNSTopic, EnvSQSQueue, EnvKafkaBrokers,
	EnvRabbitMQURL, EnvRedisAddr, EnvPulsarURL, EnvNATSURL, EnvKubeconfig, EnvReaperNamespace,
}

// Env holds credentials and endpoints. Values from the process environment win over the dotenv file.
type Env map[string]string

// LoadEnv reads the dotenv file at path, if present, and overlays the process environment.
// A missing file is not an error: every key may come from the environment alone.
func LoadEnv(path string) (Env, error) {
	v := viper.New()
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading env file %s", path)
		}
	}
	v.AutomaticEnv()

	env := make(Env, len(envKeys))
	for _, k := range envKeys {
		if val := strings.TrimSpace(v.GetString(k)); val != "" {
			env[k] = val
		}
	}
	return env, nil
}

// Apply overrides the YAML configuration with every key that is set. Channel keys only apply to
// the kind they belong to.
func (e Env) Apply(cfg *Config) {
	set := func(dst *string, key string) {
		if val, ok := e[key]; ok {
			*dst = val
		}
	}

	set(&cfg.AWS.Profile, EnvAWSProfile)
	set(&cfg.AWS.Region, EnvAWSRegion)
	set(&cfg.AWS.CredentialsFile, EnvAWSCredentials)
	set(&cfg.Reaper.Kubeconfig, EnvKubeconfig)
	set(&cfg.Reaper.Namespace, EnvReaperNamespace)

	switch cfg.Broadcast.Kind {
	case KindSNS:
		set(&cfg.Broadcast.Topic, EnvSNSTopic)
	case KindKafka:
		if val, ok := e[EnvKafkaBrokers]; ok {
			cfg.Broadcast.Brokers = splitList(val)
		}
	case KindPulsar:
		set(&cfg.Broadcast.URL, EnvPulsarURL)
	case KindNATS:
		set(&cfg.Broadcast.URL, EnvNATSURL)
	}

	switch cfg.Queue.Kind {
	case KindSQS:
		set(&cfg.Queue.Name, EnvSQSQueue)
	case KindRabbitMQ:
		set(&cfg.Queue.URL, EnvRabbitMQURL)
	case KindRedis:
		set(&cfg.Queue.Addr, EnvRedisAddr)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
