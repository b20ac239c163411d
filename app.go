package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/robustfit/fitter"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *fitter.Config
	Service    *fitter.Service
	MQTTClient *fitter.MQTTClient
	Out        io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile  string
	Input       string
	DatasetID   string
	Model       string
	Threshold   float64
	Confidence  float64
	MaxTrials   int
	MinTrials   int
	Seed        int64
	Workers     int
	EarlyBail   bool
	Verbose     bool
	GeoJSONOut  string
	SVGOut      string
	PNGOut      string
	ResultCache string
	HttpPort    int
	MqttMode    bool
	HttpMode    bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{Out: os.Stdout}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Input = opts.Input
	a.DatasetID = opts.DatasetID
	a.Model = opts.Model
	a.Threshold = opts.Threshold
	a.Confidence = opts.Confidence
	a.MaxTrials = opts.MaxTrials
	a.MinTrials = opts.MinTrials
	a.Seed = opts.Seed
	a.Workers = opts.Workers
	a.EarlyBail = opts.EarlyBail
	a.Verbose = opts.Verbose
	a.GeoJSONOut = opts.GeoJSONOut
	a.SVGOut = opts.SVGOut
	a.PNGOut = opts.PNGOut
	a.ResultCache = opts.ResultCache
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file and applies the CLI overrides to its
// defaults. A missing default config.yaml falls back to built-in defaults.
func (a *App) loadConfig() error {
	config, err := fitter.LoadConfig(a.ConfigFile)
	if err != nil {
		if _, statErr := os.Stat(a.ConfigFile); a.ConfigFile != "config.yaml" || !os.IsNotExist(statErr) {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log.Printf("No %s found, using built-in defaults", a.ConfigFile)
		config = fitter.DefaultConfig()
	} else {
		log.Printf("Loaded config from %s", a.ConfigFile)
	}

	d := &config.Defaults
	if a.Model != "" {
		d.Model = a.Model
	}
	if a.Threshold > 0 {
		d.Threshold = a.Threshold
	}
	if a.Confidence > 0 {
		d.Confidence = a.Confidence
	}
	if a.MaxTrials > 0 {
		d.MaxTrials = a.MaxTrials
		if d.MinTrials > d.MaxTrials {
			d.MinTrials = d.MaxTrials
		}
	}
	if a.MinTrials > 0 {
		d.MinTrials = a.MinTrials
	}
	if a.Seed != 0 {
		d.Seed = a.Seed
	}
	if a.Workers > 0 {
		d.Workers = a.Workers
	}
	if a.EarlyBail {
		d.EarlyBail = true
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	a.Config = config
	return nil
}

// newService builds the fit service, persisting results when a cache is set
func (a *App) newService() *fitter.Service {
	svc := fitter.NewService(a.Config)
	if a.ResultCache != "" {
		svc.Store = fitter.NewResultStoreWithCache(a.ResultCache)
		log.Printf("Result cache: %s (%d results loaded)", a.ResultCache, svc.Store.Len())
	}
	return svc
}

// fitConfig resolves the settings for ds. Flags given on the command line
// win over both the config and the dataset payload.
func (a *App) fitConfig(ds *fitter.Dataset) (fitter.FitConfig, error) {
	fc, err := a.Service.FitConfigFor(ds)
	if err != nil {
		return fitter.FitConfig{}, err
	}
	if a.Model != "" {
		if fc.Model, err = fitter.ParseModel(a.Model); err != nil {
			return fitter.FitConfig{}, err
		}
	}
	if a.Threshold > 0 {
		fc.Threshold = a.Threshold
	}
	fc.Search.Verbose = a.Verbose
	return fc, nil
}

// RunFit fits the --input dataset once, prints the result and writes the
// requested outputs
func (a *App) RunFit() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	a.Service = a.newService()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := a.loadInput(ctx)
	if err != nil {
		return err
	}
	fc, err := a.fitConfig(ds)
	if err != nil {
		return err
	}

	res, err := a.Service.RunWith(ctx, ds, fc)
	if err != nil {
		return err
	}
	a.printResult(res)
	return a.writeOutputs(res)
}

// loadInput reads --input from disk or over HTTP
func (a *App) loadInput(ctx context.Context) (*fitter.Dataset, error) {
	var (
		ds  *fitter.Dataset
		err error
	)
	if strings.HasPrefix(a.Input, "http://") || strings.HasPrefix(a.Input, "https://") {
		ds, err = fitter.FetchDataset(ctx, a.Input)
	} else {
		ds, err = fitter.LoadDatasetFile(a.Input)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", a.Input, err)
	}

	switch {
	case a.DatasetID != "":
		ds.ID = a.DatasetID
	case ds.ID == "":
		base := filepath.Base(a.Input)
		ds.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ds, nil
}

func (a *App) printResult(res *fitter.FitResult) {
	out := a.Out
	_, _ = fmt.Fprintf(out, "\n=== %s (%s) ===\n", res.DatasetID, res.Model)
	_, _ = fmt.Fprintf(out, "Model:      %s\n", res.Summary)
	_, _ = fmt.Fprintf(out, "Parameters: %v\n", res.Parameters)
	_, _ = fmt.Fprintf(out, "Inliers:    %d/%d (%.1f%%)\n", len(res.Inliers), res.Total, res.InlierRatio*100)
	_, _ = fmt.Fprintf(out, "Trials:     %d (%d degenerate)\n", res.Trials, res.Degenerate)
	_, _ = fmt.Fprintf(out, "Residuals:  mean %.4g, median %.4g, rms %.4g, max %.4g\n",
		res.Residuals.Mean, res.Residuals.Median, res.Residuals.RMS, res.Residuals.Max)
	if res.Canceled {
		_, _ = fmt.Fprintln(out, "Search was interrupted; the result is the best found so far")
	}
}

// writeOutputs writes the GeoJSON, SVG and PNG files that were asked for
func (a *App) writeOutputs(res *fitter.FitResult) error {
	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{a.GeoJSONOut, func(w io.Writer) error { return fitter.WriteGeoJSON(w, res) }},
		{a.SVGOut, fitter.NewRenderer(res).RenderToSVG},
		{a.PNGOut, fitter.NewRenderer(res).RenderToPNG},
	}

	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		if err := writeFile(o.path, o.write); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.Out, "Wrote %s\n", o.path)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// fitConfiguredDatasets fits every dataset in the config that names a path
// or URL. Failures are logged and skipped.
func (a *App) fitConfiguredDatasets(ctx context.Context) int {
	fitted := 0
	for i := range a.Config.Datasets {
		dc := &a.Config.Datasets[i]
		if dc.Path == "" && dc.URL == "" {
			continue
		}
		ds, err := fitter.LoadDataset(ctx, dc)
		if err != nil {
			log.Printf("Warning: %v", err)
			continue
		}
		fc, err := a.fitConfig(ds)
		if err != nil {
			log.Printf("Warning: dataset %s: %v", dc.ID, err)
			continue
		}
		if _, err := a.Service.RunWith(ctx, ds, fc); err != nil {
			continue
		}
		fitted++
	}
	return fitted
}

// handleRequest is the MQTT callback: it fits every request that parses
func (a *App) handleRequest(ctx context.Context) fitter.MessageHandler {
	return func(datasetID string, ds *fitter.Dataset, err error) {
		if err != nil {
			log.Printf("Error receiving dataset for %s: %v", datasetID, err)
			return
		}
		fc, err := a.fitConfig(ds)
		if err != nil {
			log.Printf("Error resolving settings for %s: %v", datasetID, err)
			return
		}
		_, _ = a.Service.RunWith(ctx, ds, fc)
	}
}

// RunService runs MQTT and/or HTTP until interrupted
func (a *App) RunService() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

// serve starts the enabled services and blocks until ctx is done
func (a *App) serve(ctx context.Context) error {
	_, _ = fmt.Fprintln(a.Out, "Starting robustfit service...")

	if err := a.loadConfig(); err != nil {
		return err
	}
	a.Service = a.newService()

	if a.MqttMode {
		mqttClient, err := fitter.InitMQTT(a.Config, a.handleRequest(ctx))
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		if mqttClient == nil {
			return errors.New("MQTT broker not configured in config.yaml")
		}
		a.MQTTClient = mqttClient
		a.Service.Publisher = fitter.NewPublisher(mqttClient.GetClient(), mqttClient.Prefix())
		_, _ = fmt.Fprintln(a.Out, "MQTT result publisher initialized")
	}

	if n := a.fitConfiguredDatasets(ctx); n > 0 {
		_, _ = fmt.Fprintf(a.Out, "Fitted %d configured datasets\n", n)
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler:           newHTTPServer(a.Service),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
			}
		}()
	}

	a.printServiceInfo()
	<-ctx.Done()

	_, _ = fmt.Fprintln(a.Out, "\nShutting down service...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	_, _ = fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

func (a *App) printServiceInfo() {
	out := a.Out
	_, _ = fmt.Fprintln(out, "\nService Running")
	_, _ = fmt.Fprintln(out, "===============")

	if a.MQTTClient != nil {
		prefix := a.MQTTClient.Prefix()
		_, _ = fmt.Fprintln(out, "\nMQTT:")
		_, _ = fmt.Fprintln(out, "  Subscribed topics:")
		for topic, id := range a.MQTTClient.Topics() {
			if id == "" {
				id = "any dataset"
			}
			_, _ = fmt.Fprintf(out, "    - %s (%s)\n", topic, id)
		}
		_, _ = fmt.Fprintf(out, "  Publishing to: %s/{datasetID}\n", prefix)
		_, _ = fmt.Fprintf(out, "  Combined results: %s/results\n", prefix)
	}

	if a.HttpMode {
		_, _ = fmt.Fprintf(out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		_, _ = fmt.Fprintln(out, "  GET    /health               - Health check")
		_, _ = fmt.Fprintln(out, "  POST   /fit?id=&model=&threshold= - Fit a JSON or CSV dataset")
		_, _ = fmt.Fprintln(out, "  GET    /results              - Latest result per dataset")
		_, _ = fmt.Fprintln(out, "  GET    /results/{id}         - One result with its points")
		_, _ = fmt.Fprintln(out, "  GET    /results/{id}/geojson - Result as GeoJSON")
		_, _ = fmt.Fprintln(out, "  DELETE /results/{id}         - Forget a result")
		_, _ = fmt.Fprintln(out, "  GET    /render/{id}?format=  - Result plot as png or svg")
		_, _ = fmt.Fprintln(out, "  GET    /metrics              - Fit metrics")
	}

	_, _ = fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
