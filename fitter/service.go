package fitter

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Service runs fits and fans the results out to the store, the metrics and,
// when connected, MQTT.
type Service struct {
	Config    *Config
	Store     *ResultStore
	Metrics   *Metrics
	Publisher *Publisher // nil disables publishing
}

// NewService wires a service around config with an in-memory store.
func NewService(config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		Config:  config,
		Store:   NewResultStore(),
		Metrics: NewMetrics(),
	}
}

// FitConfigFor resolves the settings for a dataset: the configured entry for
// its ID, then any model or threshold carried by the dataset itself.
func (s *Service) FitConfigFor(ds *Dataset) (FitConfig, error) {
	fc, err := s.Config.FitConfigFor(s.Config.GetDatasetByID(ds.ID))
	if err != nil {
		return FitConfig{}, err
	}
	if ds.Model != "" {
		fc.Model = ds.Model
	}
	if ds.Threshold > 0 {
		fc.Threshold = ds.Threshold
	}
	return fc, nil
}

// Run fits ds with the resolved settings.
func (s *Service) Run(ctx context.Context, ds *Dataset) (*FitResult, error) {
	fc, err := s.FitConfigFor(ds)
	if err != nil {
		return nil, err
	}
	return s.RunWith(ctx, ds, fc)
}

// RunWith fits ds with explicit settings, then records and publishes the
// result.
func (s *Service) RunWith(ctx context.Context, ds *Dataset, fc FitConfig) (*FitResult, error) {
	if ds.ID == "" {
		return nil, fmt.Errorf("dataset id is required")
	}

	start := time.Now()
	res, err := Fit(ctx, ds.ID, ds.Points, fc)
	s.Metrics.Observe(res, err, time.Since(start))
	if err != nil {
		log.Printf("Fit %s failed: %v", ds.ID, err)
		return nil, err
	}

	log.Printf("Fit %s: %s, %d/%d inliers after %d trials",
		ds.ID, res.Summary, len(res.Inliers), res.Total, res.Trials)
	s.Store.Put(res)

	if s.Publisher != nil {
		if err := s.Publisher.PublishResult(res); err != nil {
			log.Printf("Error publishing result for %s: %v", ds.ID, err)
		}
	}
	return res, nil
}

// LoadDataset reads a configured dataset from its path or URL.
func LoadDataset(ctx context.Context, dc *DatasetConfig, opts ...FetchOption) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	switch {
	case dc.Path != "":
		ds, err = LoadDatasetFile(dc.Path)
	case dc.URL != "":
		ds, err = FetchDataset(ctx, dc.URL, opts...)
	default:
		return nil, fmt.Errorf("dataset %s has neither path nor url", dc.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading dataset %s: %w", dc.ID, err)
	}
	ds.ID = dc.ID
	return ds, nil
}
