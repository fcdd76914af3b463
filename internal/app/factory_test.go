package app

import (
	"context"
	"testing"

	intconfig "freight-backend/internal/config"
	"freight-backend/internal/events"
)

func TestFactoryDefaultsWithoutInfra(t *testing.T) {
	f := NewFactory(intconfig.Env{KafkaTopic: "freight-payment-events"})
	defer f.Close()

	if _, ok := f.Publisher().(events.LogPublisher); !ok {
		t.Fatalf("publisher without brokers should be the log sink, got %T", f.Publisher())
	}
	if f.Gateway().Configured() {
		t.Fatalf("gateway without secret must not be configured")
	}
	if f.Gateway() != f.Gateway() {
		t.Fatalf("gateway should be built once")
	}
	rdb, err := f.Redis(context.Background())
	if err != nil || rdb != nil {
		t.Fatalf("redis without addr should be nil, got %v %v", rdb, err)
	}
}

func TestFactoryUsesKafkaWhenBrokersSet(t *testing.T) {
	f := NewFactory(intconfig.Env{KafkaBrokers: []string{"127.0.0.1:9092"}, KafkaTopic: "t1"})
	defer f.Close()

	kp, ok := f.Publisher().(*events.KafkaPublisher)
	if !ok || kp.Topic() != "t1" {
		t.Fatalf("expected kafka publisher on t1, got %T", f.Publisher())
	}
}
