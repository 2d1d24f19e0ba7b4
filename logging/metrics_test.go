package logging

import "testing"

func TestMetricsAddAndStore(t *testing.T) {
	var m Metrics
	m.TelemetryAdd("ticks", 2)
	m.TelemetryStore("clients", 4)
	m.TelemetryAdd("ticks", 3)

	snap := m.Snapshot()
	if snap["ticks"] != 5 || snap["clients"] != 4 {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	snap["ticks"] = 0
	if m.Snapshot()["ticks"] != 5 {
		t.Fatalf("expected snapshot to be a copy")
	}

	var nilMetrics *Metrics
	nilMetrics.TelemetryAdd("ignored", 1)
	if nilMetrics.Snapshot() != nil {
		t.Fatalf("expected nil snapshot from nil metrics")
	}
}
