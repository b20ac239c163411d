package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/robustfit/fitter"
	"github.com/kwv/robustfit/ransac"
)

// maxRequestBytes limits uploaded datasets to 50 MB.
const maxRequestBytes = 50 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(svc *fitter.Service) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Results   int       `json:"results"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Results:   svc.Store.Len(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	// Fit a posted dataset
	mux.HandleFunc("POST /fit", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			http.Error(w, "Error reading request body", http.StatusRequestEntityTooLarge)
			return
		}
		ds, err := fitter.ParseDataset(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := applyQuery(ds, r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("[HTTP] /fit %s: %d rows from %s", ds.ID, len(ds.Points), r.RemoteAddr)
		res, err := svc.Run(r.Context(), ds)
		if err != nil {
			http.Error(w, err.Error(), fitErrorStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, withoutPoints(res))
	})

	// Latest results, sorted by dataset ID
	mux.HandleFunc("GET /results", func(w http.ResponseWriter, r *http.Request) {
		all := svc.Store.All()
		results := make([]*fitter.FitResult, 0, len(all))
		for _, id := range svc.Store.IDs() {
			if res, ok := all[id]; ok {
				results = append(results, withoutPoints(res))
			}
		}
		writeJSON(w, http.StatusOK, results)
	})

	mux.HandleFunc("GET /results/{id}", func(w http.ResponseWriter, r *http.Request) {
		res, ok := svc.Store.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "No result for dataset", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("DELETE /results/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := svc.Store.Get(id); !ok {
			http.Error(w, "No result for dataset", http.StatusNotFound)
			return
		}
		svc.Store.Delete(id)
		if svc.Publisher != nil {
			svc.Publisher.ClearResult(id)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /results/{id}/geojson", func(w http.ResponseWriter, r *http.Request) {
		res, ok := svc.Store.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "No result for dataset", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := fitter.WriteGeoJSON(w, res); err != nil {
			log.Printf("Error encoding GeoJSON for %s: %v", res.DatasetID, err)
		}
	})

	// Scatter plot of a result with the model overlaid
	mux.HandleFunc("GET /render/{id}", func(w http.ResponseWriter, r *http.Request) {
		res, ok := svc.Store.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "No result for dataset", http.StatusNotFound)
			return
		}
		renderer := fitter.NewRenderer(res)

		var err error
		w.Header().Set("Cache-Control", "no-cache")
		switch format := r.URL.Query().Get("format"); format {
		case "", "png":
			err = renderWith(w, "image/png", renderer.RenderToPNG)
		case "svg":
			err = renderWith(w, "image/svg+xml", renderer.RenderToSVG)
		default:
			http.Error(w, fmt.Sprintf("Unknown format %q (want png or svg)", format), http.StatusBadRequest)
			return
		}
		if errors.Is(err, fitter.ErrNotRenderable) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err != nil {
			log.Printf("Error rendering %s: %v", res.DatasetID, err)
		}
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		svc.Metrics.WriteJSON(w)
	})

	return mux
}

// applyQuery copies the id, model and threshold query parameters onto ds
func applyQuery(ds *fitter.Dataset, r *http.Request) error {
	q := r.URL.Query()
	if id := q.Get("id"); id != "" {
		ds.ID = id
	}
	if ds.ID == "" {
		return errors.New("dataset id is required (query parameter id)")
	}
	if name := q.Get("model"); name != "" {
		m, err := fitter.ParseModel(name)
		if err != nil {
			return err
		}
		ds.Model = m
	}
	if s := q.Get("threshold"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid threshold %q", s)
		}
		ds.Threshold = v
	}
	return nil
}

// fitErrorStatus maps fit errors onto HTTP status codes
func fitErrorStatus(err error) int {
	switch {
	case errors.Is(err, ransac.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, ransac.ErrEstimationFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// renderWith writes nothing unless render succeeds
func renderWith(w http.ResponseWriter, contentType string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	_, err := w.Write(buf.Bytes())
	return err
}

func withoutPoints(res *fitter.FitResult) *fitter.FitResult {
	c := *res
	c.Points = nil
	return &c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
