// Package publisher pushes derived metrics to Home Assistant over MQTT,
// using the discovery convention so sensors appear without manual YAML.
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nzgrid/mercury-usage-exporter/internal/config"
	"github.com/nzgrid/mercury-usage-exporter/internal/coordinator"
	"github.com/nzgrid/mercury-usage-exporter/internal/derive"
	"github.com/nzgrid/mercury-usage-exporter/internal/logger"
)

const (
	defaultTopicPrefix     = "mercury"
	defaultDiscoveryPrefix = "homeassistant"
	defaultClientID        = "mercury-exporter"

	connectTimeout    = 10 * time.Second
	maxConnectElapsed = 2 * time.Minute
)

// Publisher publishes sensor states and attributes to an MQTT broker
type Publisher struct {
	client          mqtt.Client
	topicPrefix     string
	discoveryPrefix string
	log             *logger.Logger
}

// New connects to the broker and returns a publisher. The initial connect
// retries with exponential backoff so a broker that is still starting does
// not fail the whole daemon.
func New(cfg config.MQTTConfig, log *logger.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = defaultTopicPrefix
	}
	discoveryPrefix := cfg.DiscoveryPrefix
	if discoveryPrefix == "" {
		discoveryPrefix = defaultDiscoveryPrefix
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxConnectElapsed
	connect := func() error {
		token := client.Connect()
		token.Wait()
		return token.Error()
	}
	if err := backoff.Retry(connect, bo); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", err)
	}

	return &Publisher{
		client:          client,
		topicPrefix:     topicPrefix,
		discoveryPrefix: discoveryPrefix,
		log:             log.WithComponent("publisher"),
	}, nil
}

// discoveryConfig is the Home Assistant MQTT discovery payload for a sensor
type discoveryConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	StateTopic          string `json:"state_topic"`
	UnitOfMeasurement   string `json:"unit_of_measurement"`
	DeviceClass         string `json:"device_class,omitempty"`
	StateClass          string `json:"state_class,omitempty"`
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`
	Icon                string `json:"icon,omitempty"`
}

type sensorDef struct {
	object string
	config discoveryConfig
}

func (p *Publisher) sensors() []sensorDef {
	state := func(object string) string {
		return fmt.Sprintf("%s/%s/state", p.topicPrefix, object)
	}
	attrs := func(object string) string {
		return fmt.Sprintf("%s/%s/attributes", p.topicPrefix, object)
	}
	return []sensorDef{
		{
			object: "daily_energy",
			config: discoveryConfig{
				Name:                "Mercury Daily Energy",
				UniqueID:            "mercury_daily_energy",
				StateTopic:          state("daily_energy"),
				UnitOfMeasurement:   "kWh",
				DeviceClass:         "energy",
				StateClass:          "total",
				JSONAttributesTopic: attrs("daily_energy"),
				Icon:                "mdi:lightning-bolt",
			},
		},
		{
			object: "daily_cost",
			config: discoveryConfig{
				Name:                "Mercury Daily Cost",
				UniqueID:            "mercury_daily_cost",
				StateTopic:          state("daily_cost"),
				UnitOfMeasurement:   "NZD",
				DeviceClass:         "monetary",
				StateClass:          "total",
				JSONAttributesTopic: attrs("daily_cost"),
				Icon:                "mdi:currency-usd",
			},
		},
		{
			object: "total_energy",
			config: discoveryConfig{
				Name:              "Mercury Total Energy",
				UniqueID:          "mercury_total_energy",
				StateTopic:        state("total_energy"),
				UnitOfMeasurement: "kWh",
				DeviceClass:       "energy",
				StateClass:        "total_increasing",
			},
		},
		{
			object: "total_cost",
			config: discoveryConfig{
				Name:              "Mercury Total Cost",
				UniqueID:          "mercury_total_cost",
				StateTopic:        state("total_cost"),
				UnitOfMeasurement: "NZD",
				DeviceClass:       "monetary",
				StateClass:        "total_increasing",
			},
		},
	}
}

// PublishDiscovery announces the sensors to Home Assistant (retained, so
// a restarting HA rediscovers them without a new poll)
func (p *Publisher) PublishDiscovery() error {
	for _, s := range p.sensors() {
		topic := fmt.Sprintf("%s/sensor/mercury_usage/%s/config", p.discoveryPrefix, s.object)
		if err := p.publishJSON(topic, s.config, true); err != nil {
			return fmt.Errorf("publishing discovery config for %s: %w", s.object, err)
		}
	}
	return nil
}

// hourlyAttr is one row of the hourly breakdown attribute
type hourlyAttr struct {
	Hour        int     `json:"hour"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
}

// PublishSnapshot publishes sensor states and attribute maps for a freshly
// polled snapshot
func (p *Publisher) PublishSnapshot(snap coordinator.Snapshot, cumEnergy, cumCost derive.CumulativeState) error {
	peak := derive.PeakAndAverage(snap.Series)
	rates := derive.RateStats(snap.Series)

	hourly := make([]hourlyAttr, 0, len(snap.Series))
	for i, e := range snap.Series {
		hourly = append(hourly, hourlyAttr{Hour: i, Consumption: e.Consumption, Cost: e.Cost})
	}

	energyAttrs := map[string]any{
		"measurement_date": snap.MeasurementDate,
		"hourly_data":      hourly,
		"peak_hour":        peak.PeakHour,
		"peak_consumption": peak.PeakValue,
		"average_hourly":   peak.Average,
		"window_start":     snap.WindowStart,
		"window_end":       snap.WindowEnd,
	}
	costAttrs := map[string]any{
		"measurement_date":      snap.MeasurementDate,
		"average_rate_per_kwh":  rates.AverageRate,
		"peak_rate_per_kwh":     rates.PeakRate,
		"lowest_rate_per_kwh":   rates.LowestRate,
		"total_consumption_kwh": rates.TotalConsumption,
	}

	steps := []struct {
		topic    string
		payload  any
		retained bool
	}{
		{p.stateTopic("daily_energy"), fmt.Sprintf("%.3f", derive.DailyTotal(snap.Series, derive.Consumption)), false},
		{p.attrTopic("daily_energy"), energyAttrs, false},
		{p.stateTopic("daily_cost"), fmt.Sprintf("%.2f", derive.DailyTotal(snap.Series, derive.Cost)), false},
		{p.attrTopic("daily_cost"), costAttrs, false},
		{p.stateTopic("total_energy"), fmt.Sprintf("%.3f", cumEnergy.Value), false},
		{p.stateTopic("total_cost"), fmt.Sprintf("%.2f", cumCost.Value), false},
	}

	for _, s := range steps {
		var err error
		if str, ok := s.payload.(string); ok {
			err = p.publishRaw(s.topic, []byte(str), s.retained)
		} else {
			err = p.publishJSON(s.topic, s.payload, s.retained)
		}
		if err != nil {
			return fmt.Errorf("publishing to %s: %w", s.topic, err)
		}
	}

	p.log.Debug("published snapshot to MQTT", "measurement_date", snap.MeasurementDate)
	return nil
}

func (p *Publisher) stateTopic(object string) string {
	return fmt.Sprintf("%s/%s/state", p.topicPrefix, object)
}

func (p *Publisher) attrTopic(object string) string {
	return fmt.Sprintf("%s/%s/attributes", p.topicPrefix, object)
}

func (p *Publisher) publishJSON(topic string, payload any, retained bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	return p.publishRaw(topic, data, retained)
}

func (p *Publisher) publishRaw(topic string, payload []byte, retained bool) error {
	token := p.client.Publish(topic, 1, retained, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
