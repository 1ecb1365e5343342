// Package kafka holds broker administration shared by the relay consumer.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"live-tick-excel/internal/config"

	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EnsureTopic creates the relay topic on the cluster controller. An existing
// topic is not an error.
func EnsureTopic(ctx context.Context, cfg config.KafkaConfig, logger *zap.Logger) error {
	// Dial any broker to find the controller
	conn, err := kafkaGo.DialContext(ctx, "tcp", cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("dial kafka %s: %w", cfg.BrokerURL, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get kafka controller: %w", err)
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafkaGo.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("dial kafka controller %s: %w", controllerAddr, err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafkaGo.TopicAlreadyExists) {
		return fmt.Errorf("create kafka topic %s: %w", cfg.Topic, err)
	}

	logger.Info("kafka topic is ready", zap.String("topic", cfg.Topic))
	return nil
}
