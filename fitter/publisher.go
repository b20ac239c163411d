package fitter

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ResultMessage is the MQTT payload for one fit result. Points and inlier
// indices are left out to keep messages small.
type ResultMessage struct {
	DatasetID   string        `json:"datasetId"`
	Model       Model         `json:"model"`
	Parameters  []float64     `json:"parameters"`
	Summary     string        `json:"summary"`
	InlierCount int           `json:"inlierCount"`
	Total       int           `json:"total"`
	InlierRatio float64       `json:"inlierRatio"`
	Trials      int           `json:"trials"`
	Residuals   ResidualStats `json:"residuals"`
	Timestamp   int64         `json:"timestamp"`
}

func newResultMessage(res *FitResult) *ResultMessage {
	return &ResultMessage{
		DatasetID:   res.DatasetID,
		Model:       res.Model,
		Parameters:  res.Parameters,
		Summary:     res.Summary,
		InlierCount: len(res.Inliers),
		Total:       res.Total,
		InlierRatio: res.InlierRatio,
		Trials:      res.Trials,
		Residuals:   res.Residuals,
		Timestamp:   res.Timestamp,
	}
}

// Publisher publishes fit results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	results       map[string]*ResultMessage
	mu            sync.RWMutex
}

// NewPublisher creates a result publisher. The topic prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then DefaultPublishPrefix.
// If client is nil, publishing is disabled.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,    // at least once
		retain:        true, // retain the latest fit per dataset
		results:       make(map[string]*ResultMessage),
	}
}

// Prefix returns the topic prefix in use
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// PublishResult publishes a fit to its dataset topic and refreshes the
// combined results topic
func (p *Publisher) PublishResult(res *FitResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	msg := newResultMessage(res)

	p.mu.Lock()
	p.results[res.DatasetID] = msg
	p.mu.Unlock()

	// Publish to individual topic: {prefix}/{datasetID}
	if err := p.publishIndividual(msg); err != nil {
		log.Printf("Error publishing result for %s: %v", res.DatasetID, err)
		return err
	}

	// Publish to combined topic: {prefix}/results
	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined results: %v", err)
		return err
	}

	return nil
}

func (p *Publisher) publishIndividual(msg *ResultMessage) error {
	topic := fmt.Sprintf("%s/%s", p.publishPrefix, msg.DatasetID)

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published %s fit for %s: %s (%d/%d inliers)",
		msg.Model, msg.DatasetID, msg.Summary, msg.InlierCount, msg.Total)
	return nil
}

func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	results := make([]*ResultMessage, 0, len(p.results))
	for _, r := range p.results {
		results = append(results, r)
	}
	p.mu.RUnlock()

	if len(results) == 0 {
		return nil
	}
	sort.Slice(results, func(i, j int) bool { return results[i].DatasetID < results[j].DatasetID })

	topic := fmt.Sprintf("%s/results", p.publishPrefix)
	message := map[string]interface{}{
		"results":   results,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined results: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// GetResult returns the last published result for a dataset
func (p *Publisher) GetResult(datasetID string) (*ResultMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.results[datasetID]
	return r, ok
}

// ClearResult forgets a dataset so it drops out of the combined topic
func (p *Publisher) ClearResult(datasetID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.results, datasetID)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
