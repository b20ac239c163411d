package fitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/robustfit/ransac"
)

func serviceConfig() *Config {
	cfg := DefaultConfig()
	cfg.MQTT.PublishPrefix = "fits"
	cfg.Defaults.MinTrials = 50
	cfg.Defaults.Seed = 3
	cfg.Datasets = []DatasetConfig{
		{ID: "floor", Threshold: floatPtr(0.5)},
		{ID: "pipe", Model: "circle", Threshold: floatPtr(0.05)},
	}
	return cfg
}

func TestService_FitConfigFor(t *testing.T) {
	s := NewService(serviceConfig())

	fc, err := s.FitConfigFor(&Dataset{ID: "pipe"})
	require.NoError(t, err)
	assert.Equal(t, ModelCircle, fc.Model)
	assert.Equal(t, 0.05, fc.Threshold)
	assert.Equal(t, 50, fc.Search.MinTrials)

	// Payload hints win over the config entry
	fc, err = s.FitConfigFor(&Dataset{ID: "pipe", Model: ModelLine, Threshold: 2})
	require.NoError(t, err)
	assert.Equal(t, ModelLine, fc.Model)
	assert.Equal(t, 2.0, fc.Threshold)

	// Unknown datasets use the defaults
	fc, err = s.FitConfigFor(&Dataset{ID: "adhoc"})
	require.NoError(t, err)
	assert.Equal(t, ModelLine, fc.Model)
	assert.Equal(t, 1.0, fc.Threshold)
}

func TestService_Run(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	s := NewService(serviceConfig())
	client := connectedMock()
	s.Publisher = NewPublisher(client, s.Config.MQTT.PublishPrefix)

	res, err := s.Run(context.Background(), &Dataset{ID: "floor", Points: lineRows(40, 10)})
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Threshold)

	stored, ok := s.Store.Get("floor")
	require.True(t, ok)
	assert.Equal(t, res.Inliers, stored.Inliers)

	assert.Len(t, client.MessagesOn("fits/floor"), 1)
	assert.Len(t, client.MessagesOn("fits/results"), 1)
	assert.Equal(t, int64(1), s.Metrics.Snapshot().Runs)
}

func TestService_RunErrors(t *testing.T) {
	s := NewService(nil)

	_, err := s.Run(context.Background(), &Dataset{Points: lineRows(5, 0)})
	assert.ErrorContains(t, err, "dataset id is required")

	_, err = s.Run(context.Background(), &Dataset{ID: "bad", Points: [][]float64{{1, 2, 3}}})
	assert.ErrorIs(t, err, ransac.ErrConfiguration)
	assert.Equal(t, 0, s.Store.Len())
	assert.Equal(t, int64(1), s.Metrics.Snapshot().ConfigErrors)
}

func TestService_RunWithoutBrokerStillStores(t *testing.T) {
	s := NewService(serviceConfig())
	s.Publisher = NewPublisher(NewMockClient(), "fits")

	_, err := s.Run(context.Background(), &Dataset{ID: "floor", Points: lineRows(20, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Store.Len())
}

func TestService_MQTTRequestFlow(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	cfg := serviceConfig()
	s := NewService(cfg)
	mock := connectedMock()
	s.Publisher = NewPublisher(mock, cfg.MQTT.PublishPrefix)

	c := NewMQTTClientWithClient(mock, cfg, func(id string, ds *Dataset, err error) {
		if err != nil {
			return
		}
		_, _ = s.Run(context.Background(), ds)
	})
	c.Subscribe()

	payload, err := json.Marshal(map[string]any{"points": circleRows(1, 1, 3, 30, 5)})
	require.NoError(t, err)
	mock.SimulateMessage(RequestTopic(c.Prefix(), "pipe"), payload)

	res, ok := s.Store.Get("pipe")
	require.True(t, ok)
	assert.Equal(t, ModelCircle, res.Model)
	assert.InDelta(t, 3, res.Parameters[2], 1e-6)
	assert.Len(t, mock.MessagesOn("fits/pipe"), 1)
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floor.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,1\n1,3\n"), 0644))

	ds, err := LoadDataset(context.Background(), &DatasetConfig{ID: "floor", Path: path})
	require.NoError(t, err)
	assert.Equal(t, "floor", ds.ID)
	assert.Len(t, ds.Points, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[0,0,1],[1,0,1],[0,1,1]]`))
	}))
	defer srv.Close()

	ds, err = LoadDataset(context.Background(), &DatasetConfig{ID: "roof", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "roof", ds.ID)

	_, err = LoadDataset(context.Background(), &DatasetConfig{ID: "nowhere"})
	assert.ErrorContains(t, err, "neither path nor url")
}
