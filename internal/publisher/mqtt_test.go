package publisher

import (
	"encoding/json"
	"testing"

	"github.com/nzgrid/mercury-usage-exporter/internal/logger"
)

func testPublisher() *Publisher {
	return &Publisher{
		topicPrefix:     defaultTopicPrefix,
		discoveryPrefix: defaultDiscoveryPrefix,
		log:             logger.New("error"),
	}
}

func TestSensorDefinitions(t *testing.T) {
	p := testPublisher()
	sensors := p.sensors()

	if len(sensors) != 4 {
		t.Fatalf("sensors() returned %d definitions, want 4", len(sensors))
	}

	byObject := map[string]discoveryConfig{}
	for _, s := range sensors {
		byObject[s.object] = s.config
	}

	daily, ok := byObject["daily_energy"]
	if !ok {
		t.Fatal("daily_energy sensor missing")
	}
	if daily.StateTopic != "mercury/daily_energy/state" {
		t.Errorf("state topic = %q, want mercury/daily_energy/state", daily.StateTopic)
	}
	if daily.JSONAttributesTopic != "mercury/daily_energy/attributes" {
		t.Errorf("attributes topic = %q, want mercury/daily_energy/attributes", daily.JSONAttributesTopic)
	}
	if daily.DeviceClass != "energy" || daily.StateClass != "total" {
		t.Errorf("daily_energy classes = %s/%s, want energy/total", daily.DeviceClass, daily.StateClass)
	}

	total, ok := byObject["total_energy"]
	if !ok {
		t.Fatal("total_energy sensor missing")
	}
	// The running total must be total_increasing so HA's energy dashboard
	// accepts it as a source.
	if total.StateClass != "total_increasing" {
		t.Errorf("total_energy state class = %q, want total_increasing", total.StateClass)
	}

	seen := map[string]bool{}
	for _, s := range sensors {
		if seen[s.config.UniqueID] {
			t.Errorf("duplicate unique_id %q", s.config.UniqueID)
		}
		seen[s.config.UniqueID] = true
	}
}

func TestDiscoveryConfigJSON(t *testing.T) {
	p := testPublisher()

	data, err := json.Marshal(p.sensors()[0].config)
	if err != nil {
		t.Fatalf("marshaling discovery config: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decoding discovery config: %v", err)
	}

	for _, key := range []string{"name", "unique_id", "state_topic", "unit_of_measurement"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("discovery payload missing %q", key)
		}
	}
}

func TestTopicPrefixOverride(t *testing.T) {
	p := &Publisher{topicPrefix: "custom", discoveryPrefix: "ha", log: logger.New("error")}

	if got := p.stateTopic("daily_cost"); got != "custom/daily_cost/state" {
		t.Errorf("stateTopic() = %q, want custom/daily_cost/state", got)
	}
	if got := p.attrTopic("daily_cost"); got != "custom/daily_cost/attributes" {
		t.Errorf("attrTopic() = %q, want custom/daily_cost/attributes", got)
	}
}
