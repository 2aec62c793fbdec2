package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oceanobs/streamwatch/internal/conf"
	"github.com/oceanobs/streamwatch/internal/logger"
)

const mqttConnectTimeout = 30 * time.Second

// portAgentStat mirrors one port-agent statistics message. Counters are
// per-interval deltas, not cumulative.
type portAgentStat struct {
	RefDes     string  `json:"reference_designator"`
	BytesIn    int64   `json:"bytes_in"`
	BytesOut   int64   `json:"bytes_out"`
	Adds       int64   `json:"adds"`
	Elapsed    float64 `json:"elapsed"`
	EndTime    float64 `json:"end_time"`
	NumClients struct {
		Client int `json:"client"`
	} `json:"num_clients"`
}

// PortStat is one port-agent byte counter interval, keyed by reference
// designator. Port counters are charted and compacted but carry no
// stream identity, so they never enter health classification.
type PortStat struct {
	RefDes         string
	ByteCount      int64
	SecondsElapsed float64
	CollectedTime  time.Time
}

// MQTTSource subscribes to port-agent byte counter statistics. Messages
// accumulate between cycles; Gather drains the buffer.
type MQTTSource struct {
	client paho.Client
	topic  string
	log    logger.Logger

	mu     sync.Mutex
	buffer []PortStat
}

// NewMQTTSource connects to the broker and subscribes.
func NewMQTTSource(settings *conf.MQTTSourceSettings, log logger.Logger) (*MQTTSource, error) {
	s := &MQTTSource{
		topic: settings.Topic,
		log:   log,
	}

	opts := paho.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(settings.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOnConnectHandler(func(client paho.Client) {
			if token := client.Subscribe(s.topic, 1, s.handleMessage); token.Wait() && token.Error() != nil {
				log.Error("mqtt subscribe failed",
					logger.String("topic", s.topic), logger.Error(token.Error()))
			}
		})
	s.client = paho.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to broker %s after %v", settings.Broker, mqttConnectTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", settings.Broker, token.Error())
	}
	return s, nil
}

func (s *MQTTSource) handleMessage(_ paho.Client, msg paho.Message) {
	var stat portAgentStat
	if err := json.Unmarshal(msg.Payload(), &stat); err != nil {
		s.log.Warn("undecodable port agent message",
			logger.String("topic", msg.Topic()), logger.Error(err))
		return
	}
	if stat.RefDes == "" {
		s.log.Warn("port agent message without reference designator",
			logger.String("topic", msg.Topic()))
		return
	}
	if c := stat.NumClients.Client; c > 0 && stat.Adds == 0 && float64(stat.BytesIn) != float64(stat.BytesOut)/float64(c) {
		s.log.Error("differing in/out byte counts",
			logger.String("refdes", stat.RefDes),
			logger.Int64("bytes_in", stat.BytesIn),
			logger.Int64("bytes_out", stat.BytesOut),
			logger.Int("clients", c))
	}

	sec := int64(stat.EndTime)
	nsec := int64((stat.EndTime - float64(sec)) * float64(time.Second))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, PortStat{
		RefDes:         stat.RefDes,
		ByteCount:      stat.BytesIn,
		SecondsElapsed: stat.Elapsed,
		CollectedTime:  time.Unix(sec, nsec).UTC(),
	})
}

// Gather drains the buffered port stats.
func (s *MQTTSource) Gather(_ context.Context) ([]PortStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.buffer
	s.buffer = nil
	return stats, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	s.client.Disconnect(250)
	return nil
}
