package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

const (
	readyAttempts = 10
	readyDelay    = 3 * time.Second
)

// waitForKafka blocks until the broker accepts connections. The API and the
// grading worker both start alongside Kafka in compose, so the first dials
// routinely race the broker's startup.
func waitForKafka(brokers []string) error {
	for attempt := 1; attempt <= readyAttempts; attempt++ {
		cfg := sarama.NewConfig()
		cfg.Net.DialTimeout = 1 * time.Second
		client, err := sarama.NewClient(brokers, cfg)
		if err == nil {
			client.Close()
			return nil
		}
		slog.Info("Waiting for Kafka to be ready...", "attempt", attempt)
		time.Sleep(readyDelay)
	}
	return fmt.Errorf("kafka not available after %d attempts", readyAttempts)
}

// producerConfig builds the sarama config for the grading-job producer.
// Sends are synchronous because the essay-submit handler reports queueing
// failures to the caller, so successes must be returned. retryBackoff is
// applied as-is.
func producerConfig(retryMax int, retryBackoff time.Duration) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = retryMax
	cfg.Producer.Retry.Backoff = retryBackoff
	return cfg
}

// NewProducer connects a synchronous producer used to publish grading jobs.
func NewProducer(broker string, retryMax int, retryBackoff time.Duration) (sarama.SyncProducer, error) {
	brokers := []string{broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}
	return sarama.NewSyncProducer(brokers, producerConfig(retryMax, retryBackoff))
}

// consumerConfig builds the sarama config for the grading worker's consumer
// group. Offsets start at oldest so essays submitted while no worker was
// running still get graded.
func consumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// NewConsumer joins the grading worker's consumer group on the given broker.
func NewConsumer(broker, group string) (sarama.ConsumerGroup, error) {
	brokers := []string{broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}
	return sarama.NewConsumerGroup(brokers, group, consumerConfig())
}
