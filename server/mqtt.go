package server

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"anchorwatch/filter"
)

// MQTTPublisher mirrors positions and alarm transitions to an MQTT broker so
// chartplotters and home-automation setups can subscribe. The alarm topic is
// retained: a late subscriber immediately learns the current state.
type MQTTPublisher struct {
	client mqtt.Client
	cfg    MQTTConfig
}

type alarmMessage struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	DistanceM float64 `json:"distance_m"`
	Timestamp int64   `json:"ts"`
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "anchorwatch"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "anchorwatch"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	log.Printf("[mqtt] connected to %s as %s", cfg.Broker, cfg.ClientID)
	return &MQTTPublisher{client: client, cfg: cfg}, nil
}

// PublishPosition sends the filtered position to <prefix>/position.
func (p *MQTTPublisher) PublishPosition(loc filter.FilteredLocation) {
	payload, err := json.Marshal(loc)
	if err != nil {
		log.Printf("[mqtt] marshal position: %v", err)
		return
	}
	token := p.client.Publish(p.cfg.TopicPrefix+"/position", p.cfg.QoS, false, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("[mqtt] publish position: %v", token.Error())
	}
}

// PublishAlarm sends the transition to <prefix>/alarm, retained.
func (p *MQTTPublisher) PublishAlarm(tr filter.AlarmTransition) {
	msg := alarmMessage{
		From:      tr.From.String(),
		To:        tr.To.String(),
		DistanceM: tr.DistanceM,
		Timestamp: tr.Timestamp,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[mqtt] marshal alarm: %v", err)
		return
	}
	token := p.client.Publish(p.cfg.TopicPrefix+"/alarm", p.cfg.QoS, true, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("[mqtt] publish alarm: %v", token.Error())
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
