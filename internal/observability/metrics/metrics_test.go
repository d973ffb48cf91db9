package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	var total float64
	for metric := range ch {
		var out dto.Metric
		if err := metric.Write(&out); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		switch {
		case out.Counter != nil:
			total += out.Counter.GetValue()
		case out.Gauge != nil:
			total += out.Gauge.GetValue()
		}
	}
	return total
}

func TestMessagingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMessagingMetrics(reg)
	m.ObserveInbound("text", "queued")
	m.ObserveOutbound("sent", false)
	m.ObserveOutbound("failed", true)
	m.ObserveWebhookLatency("text", 0.5)

	if got := counterValue(t, m.outboundTotal); got != 2 {
		t.Fatalf("expected 2 outbound sends, got %v", got)
	}
}

func TestEngineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.ObserveEvent("processed")
	m.ObserveTransition("MainMenu", "MainMenu")
	m.ObserveTransition("MainMenu", "OrderInquiry")
	m.SetLiveSessions(3)
	m.ObserveOrderTransition("delivered")

	if got := counterValue(t, m.transitionsTotal); got != 1 {
		t.Fatalf("self transitions must not count, got %v", got)
	}
	if got := counterValue(t, m.liveSessions); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered families")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *MessagingMetrics
	m.ObserveInbound("event", "status")
	m.ObserveOutbound("queued", false)
	m.ObserveWebhookLatency("event", 0.1)

	var e *EngineMetrics
	e.ObserveEvent("dropped")
	e.ObserveTransition("a", "b")
	e.SetLiveSessions(1)
	e.ObserveSessionEnded("expired")
	e.ObserveOrderTransition("pending")
	e.ObserveNotification("sent")
}
