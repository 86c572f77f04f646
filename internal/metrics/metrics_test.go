package metrics

import "testing"

func gathered(t *testing.T, m *Metrics, name string) (float64, bool) {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		metric := f.GetMetric()[0]
		if c := metric.GetCounter(); c != nil {
			return c.GetValue(), true
		}
		return metric.GetGauge().GetValue(), true
	}
	return 0, false
}

func TestNewRegistersCollectors(t *testing.T) {
	m := New()
	m.MessagesSent.Inc()
	m.LiveSubscriptions.Inc()
	m.LiveSubscriptions.Dec()

	if got, ok := gathered(t, m, "rental_messages_sent_total"); !ok || got != 1 {
		t.Fatalf("messages sent = %v (registered %v)", got, ok)
	}
	if got, ok := gathered(t, m, "rental_live_subscriptions_active"); !ok || got != 0 {
		t.Fatalf("live subscriptions = %v (registered %v)", got, ok)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SendFailures.Inc()
	if got, _ := gathered(t, b, "rental_message_send_failures_total"); got != 0 {
		t.Fatalf("second instance saw %v failures", got)
	}
}
