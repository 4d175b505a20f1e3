package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	coremqtt "github.com/kilianp07/smartcharge/core/mqtt"
	"github.com/kilianp07/smartcharge/core/registry"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/ocpp"
)

// DefaultTopicPrefix is the first topic level when none is configured.
const DefaultTopicPrefix = "smartcharge"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// ProfileHandler applies the profile changes requested over MQTT.
// *registry.Registry satisfies it.
type ProfileHandler interface {
	Add(ctx context.Context, p model.ChargingProfile) (registry.EventKind, error)
	Remove(ctx context.Context, connectorID, profileID int) (bool, error)
	Find(ctx context.Context, profileID int) (model.ChargingProfile, bool, error)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient receives SetChargingProfile and ClearChargingProfile requests
// for one charge point and publishes the resulting composite schedules.
type PahoClient struct {
	cli           pahoClient
	chargePointID string
	prefix        string
	qos           map[string]byte
	handler       ProfileHandler
	requests      coremetrics.RequestRecorder
	maxConnector  int
	timeout       time.Duration

	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

// Option customises a PahoClient.
type Option func(*PahoClient)

// WithRequestRecorder records the outcome of every request.
func WithRequestRecorder(r coremetrics.RequestRecorder) Option {
	return func(p *PahoClient) {
		if r != nil {
			p.requests = r
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l logger.Logger) Option {
	return func(p *PahoClient) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMaxConnector rejects requests addressed to connectors above n.
// Zero disables the check.
func WithMaxConnector(n int) Option { return func(p *PahoClient) { p.maxConnector = n } }

// WithRequestTimeout bounds how long a request may take to apply.
func WithRequestTimeout(d time.Duration) Option { return func(p *PahoClient) { p.timeout = d } }

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the request
// topics of chargePointID.
func NewPahoClient(cfg Config, chargePointID string, handler ProfileHandler, opts ...Option) (*PahoClient, error) {
	if chargePointID == "" {
		return nil, errors.New("mqtt: charge point id is required")
	}
	if handler == nil {
		return nil, errors.New("mqtt: profile handler is required")
	}
	copts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	pc := &PahoClient{
		chargePointID: chargePointID,
		prefix:        cfg.TopicPrefix,
		qos:           cfg.QoS,
		handler:       handler,
		requests:      coremetrics.NopSink{},
		timeout:       5 * time.Second,
		logger:        logger.New("mqtt_client"),
		maxRetries:    cfg.MaxRetries,
		backoff:       time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if pc.prefix == "" {
		pc.prefix = DefaultTopicPrefix
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}
	for _, o := range opts {
		o(pc)
	}

	copts.OnConnect = func(c paho.Client) {
		pc.logger.Infof("MQTT connected")
		pc.subscribe(c)
	}
	copts.OnConnectionLost = func(_ paho.Client, err error) {
		pc.logger.Errorf("connection lost: %v", err)
	}
	copts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		pc.logger.Warnf("reconnecting to MQTT broker")
	}
	// Requests may arrive from OnConnect before Connect returns.
	pc.cli = newMQTTClient(copts)
	if token := pc.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(key string) byte {
	if q, ok := p.qos[key]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) subscribe(c paho.Client) {
	routes := map[string]paho.MessageHandler{
		coremqtt.SetChargingProfileTopic:   p.onSetChargingProfile,
		coremqtt.ClearChargingProfileTopic: p.onClearChargingProfile,
	}
	for _, action := range []string{coremqtt.SetChargingProfileTopic, coremqtt.ClearChargingProfileTopic} {
		topic := coremqtt.RequestTopic(p.prefix, p.chargePointID, action)
		if token := c.Subscribe(topic, p.qosFor("request"), routes[action]); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

type envelope struct {
	MessageID string          `json:"messageId"`
	Payload   json.RawMessage `json:"payload"`
}

type response struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

func (p *PahoClient) onSetChargingProfile(_ paho.Client, msg paho.Message) {
	defer coremon.Recover()
	p.handle(msg, coremqtt.SetChargingProfileTopic, func(ctx context.Context, payload []byte) (string, error) {
		profile, err := ocpp.DecodeSetChargingProfile(payload)
		if err != nil {
			return ocpp.StatusRejected, err
		}
		if p.maxConnector > 0 && profile.ConnectorID > p.maxConnector {
			return ocpp.StatusRejected, fmt.Errorf("unknown connector %d", profile.ConnectorID)
		}
		if _, err := p.handler.Add(ctx, profile); err != nil {
			return ocpp.StatusRejected, err
		}
		return ocpp.StatusAccepted, nil
	})
}

func (p *PahoClient) onClearChargingProfile(_ paho.Client, msg paho.Message) {
	defer coremon.Recover()
	p.handle(msg, coremqtt.ClearChargingProfileTopic, func(ctx context.Context, payload []byte) (string, error) {
		req, err := ocpp.DecodeClearChargingProfile(payload)
		if err != nil {
			return ocpp.StatusUnknown, err
		}
		connectorID := 0
		if req.ConnectorID != nil {
			connectorID = *req.ConnectorID
		} else {
			found, ok, err := p.handler.Find(ctx, req.ProfileID)
			if err != nil {
				return ocpp.StatusUnknown, err
			}
			if !ok {
				return ocpp.StatusUnknown, nil
			}
			connectorID = found.ConnectorID
		}
		removed, err := p.handler.Remove(ctx, connectorID, req.ProfileID)
		if err != nil {
			return ocpp.StatusUnknown, err
		}
		if !removed {
			return ocpp.StatusUnknown, nil
		}
		return ocpp.StatusAccepted, nil
	})
}

// handle decodes the request envelope, applies it and publishes the reply
// on the response topic.
func (p *PahoClient) handle(msg paho.Message, action string, apply func(context.Context, []byte) (string, error)) {
	var env envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		p.logger.Errorf("%s: decode envelope: %v", action, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	status, err := apply(ctx, env.Payload)
	resp := response{MessageID: env.MessageID, Status: status}
	if err != nil {
		resp.Reason = err.Error()
		p.logger.Warnf("%s %s: %s: %v", action, env.MessageID, status, err)
	} else {
		p.logger.Infof("%s %s: %s", action, env.MessageID, status)
	}
	if rerr := p.requests.RecordRequest(coremetrics.RequestEvent{Action: action, Status: status, Time: time.Now()}); rerr != nil {
		p.logger.Errorf("record request: %v", rerr)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		p.logger.Errorf("%s: encode response: %v", action, err)
		return
	}
	topic := coremqtt.RequestTopic(p.prefix, p.chargePointID, action) + coremqtt.ResponseSuffix
	if err := p.publish(topic, p.qosFor("response"), false, payload, map[string]string{"action": action}); err != nil {
		p.logger.Errorf("%s: publish response: %v", action, err)
	}
}

// PublishSchedule publishes u as a retained message on the connector's
// schedule topic.
func (p *PahoClient) PublishSchedule(ctx context.Context, u coremqtt.ScheduleUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	topic := coremqtt.ScheduleTopic(p.prefix, p.chargePointID, u.ConnectorID)
	tags := map[string]string{"connector_id": strconv.Itoa(u.ConnectorID)}
	if err := p.publish(topic, p.qosFor("schedule"), true, payload, tags); err != nil {
		return err
	}
	p.logger.Infof("published schedule %s for connector %d", u.MessageID, u.ConnectorID)
	return nil
}

func (p *PahoClient) publish(topic string, qos byte, retained bool, payload []byte, tags map[string]string) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	all := map[string]string{"module": "mqtt", "topic": topic}
	for k, v := range tags {
		all[k] = v
	}
	coremon.CaptureException(publishErr, all)
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
