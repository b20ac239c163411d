package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line flags
type AppOptions struct {
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

// Runner is the part of App that run drives
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunFit() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

// run parses args and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("robustfit", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.Input, "input", "", "Dataset to fit once and exit (file path or http(s) URL, JSON or CSV)")
	fs.StringVar(&opts.DatasetID, "id", "", "Dataset ID for --input (default: file name)")
	fs.StringVar(&opts.Model, "model", "", "Model family: line, circle, plane, rigid or affine (default: from config)")
	fs.Float64Var(&opts.Threshold, "threshold", 0, "Agreement threshold (0 uses the config)")
	fs.Float64Var(&opts.Confidence, "confidence", 0, "Probability of drawing an all-inlier sample (0 uses the config)")
	fs.IntVar(&opts.MaxTrials, "max-trials", 0, "Upper bound on trials (0 uses the config)")
	fs.IntVar(&opts.MinTrials, "min-trials", 0, "Lower bound on trials (0 uses the config)")
	fs.Int64Var(&opts.Seed, "seed", 0, "Sampler seed (0 uses the config)")
	fs.IntVar(&opts.Workers, "workers", 0, "Parallel trial workers (0 uses the config)")
	fs.BoolVar(&opts.EarlyBail, "early-bail", false, "Stop scoring candidates that cannot beat the best")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Log discarded samples")
	fs.StringVar(&opts.GeoJSONOut, "geojson", "", "Write the --input result as GeoJSON to this file")
	fs.StringVar(&opts.SVGOut, "svg", "", "Write the --input result as SVG to this file")
	fs.StringVar(&opts.PNGOut, "png", "", "Write the --input result as PNG to this file")
	fs.StringVar(&opts.ResultCache, "result-cache", "", "Persist service results to this JSON file")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode, fitting datasets published to {prefix}/{id}/points")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for fits and results")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")

	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "robustfit version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.Input != "":
		return app.RunFit()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	_, _ = fmt.Fprintln(out, "robustfit: robust model fitting with RANSAC")
	_, _ = fmt.Fprintln(out, "Use --input=FILE to fit a dataset once (add --svg, --png or --geojson for output)")
	_, _ = fmt.Fprintln(out, "Use --mqtt to fit datasets published over MQTT")
	_, _ = fmt.Fprintln(out, "Use --http to serve fits and results over HTTP")
	_, _ = fmt.Fprintln(out, "Use --mqtt --http to run both together")
	_, _ = fmt.Fprintln(out, "\nConfiguration:")
	_, _ = fmt.Fprintln(out, "  config.yaml - MQTT settings, search defaults and datasets")
	return nil
}
