package publish

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"adsbtrack/internal/notify"
	"adsbtrack/internal/track"
)

// publishTimeout bounds the wait for a publish to be handed to the network
const publishTimeout = 5 * time.Second

// MQTTConfig configures the MQTT publisher
type MQTTConfig struct {
	Broker      string        `yaml:"broker"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         byte          `yaml:"qos"`
	Retain      bool          `yaml:"retain"`
	Interval    time.Duration `yaml:"interval"`
}

// DefaultMQTTConfig returns the MQTT defaults. The publisher is disabled
// while Broker is empty.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		TopicPrefix: "adsbtrack",
		Interval:    time.Second,
	}
}

// MQTTPublisher publishes track updates as JSON. Updates for one aircraft
// are sent at most once per Interval.
type MQTTPublisher struct {
	client mqtt.Client
	config MQTTConfig
	logger *logrus.Logger

	mutex    sync.Mutex
	lastSent map[uint32]time.Time
	now      func() time.Time
}

// NewMQTTPublisher connects to the broker
func NewMQTTPublisher(config MQTTConfig, logger *logrus.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID("adsbtrack_" + uuid.NewString())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.WithField("broker", config.Broker).Info("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(30*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newMQTTPublisher(client, config, logger), nil
}

func newMQTTPublisher(client mqtt.Client, config MQTTConfig, logger *logrus.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:   client,
		config:   config,
		logger:   logger,
		lastSent: make(map[uint32]time.Time),
		now:      time.Now,
	}
}

// AircraftTopic returns the topic a track is published on
func (mp *MQTTPublisher) AircraftTopic(hex string) string {
	return mp.config.TopicPrefix + "/aircraft/" + hex
}

// PublishAircraft implements Publisher
func (mp *MQTTPublisher) PublishAircraft(a *track.Aircraft) {
	now := mp.now()
	mp.mutex.Lock()
	if last, ok := mp.lastSent[a.ICAO]; ok && now.Sub(last) < mp.config.Interval {
		mp.mutex.Unlock()
		return
	}
	mp.lastSent[a.ICAO] = now
	mp.mutex.Unlock()

	mp.publish(mp.AircraftTopic(a.Hex), a, mp.config.Retain)
}

// PublishExpired implements Publisher. A retained aircraft message is
// cleared as well.
func (mp *MQTTPublisher) PublishExpired(e track.Expired) {
	mp.mutex.Lock()
	delete(mp.lastSent, e.ICAO)
	mp.mutex.Unlock()

	if mp.config.Retain {
		mp.send(mp.AircraftTopic(e.Hex), []byte{}, true)
	}
	mp.publish(mp.config.TopicPrefix+"/expired/"+e.Hex, e, false)
}

// PublishNotification implements Publisher
func (mp *MQTTPublisher) PublishNotification(n notify.Notification) {
	mp.publish(mp.config.TopicPrefix+"/notification", n, false)
}

// publish sends a JSON payload to an MQTT topic
func (mp *MQTTPublisher) publish(topic string, payload any, retain bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		mp.logger.WithField("topic", topic).WithError(err).Error("Failed to marshal MQTT payload")
		return
	}
	mp.send(topic, data, retain)
}

func (mp *MQTTPublisher) send(topic string, data []byte, retain bool) {
	token := mp.client.Publish(topic, mp.config.QoS, retain, data)
	if !token.WaitTimeout(publishTimeout) {
		mp.logger.WithField("topic", topic).Warn("MQTT publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		mp.logger.WithField("topic", topic).WithError(err).Warn("Failed to publish to MQTT")
	}
}

// Disconnect gracefully disconnects from the broker
func (mp *MQTTPublisher) Disconnect() {
	if mp.client.IsConnected() {
		mp.client.Disconnect(250)
		mp.logger.Info("MQTT disconnected")
	}
}
