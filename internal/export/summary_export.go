// Package export ships computed user summaries to downstream consumers.
package export

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lendpool-health-ea/internal/model"
)

// SummaryExporter batches user summaries and delivers them to a webhook
// endpoint on a fixed interval or when the batch fills up.
type SummaryExporter struct {
	config         ExporterConfig
	httpClient     *http.Client
	mutex          sync.RWMutex
	batch          []*model.UserSummaryResponse
	lastExport     time.Time
	exportInterval time.Duration
	exportContext  context.Context
	exportCancel   context.CancelFunc
}

// ExporterConfig holds configuration for summary exporting
type ExporterConfig struct {
	Enabled        bool   `json:"enabled"`
	BatchSize      int    `json:"batch_size"`
	ExportInterval string `json:"export_interval"`

	WebhookURL    string `json:"webhook_url"`
	WebhookAPIKey string `json:"webhook_api_key,omitempty"`
}

// NewSummaryExporter creates a new summary exporter
func NewSummaryExporter(config ExporterConfig) (*SummaryExporter, error) {
	if !config.Enabled {
		return &SummaryExporter{config: config}, nil
	}

	if config.WebhookURL == "" {
		return nil, fmt.Errorf("summary export enabled but webhook URL not configured")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}

	exportInterval, err := time.ParseDuration(config.ExportInterval)
	if err != nil {
		exportInterval = 1 * time.Minute
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			IdleConnTimeout: 90 * time.Second,
		},
	}

	exporter := &SummaryExporter{
		config:         config,
		httpClient:     httpClient,
		batch:          make([]*model.UserSummaryResponse, 0, config.BatchSize),
		exportInterval: exportInterval,
	}

	exporter.exportContext, exporter.exportCancel = context.WithCancel(context.Background())
	go exporter.periodicExport()

	logrus.Info("Summary exporter initialized")
	return exporter, nil
}

// Add queues a computed user summary for export
func (e *SummaryExporter) Add(summary *model.UserSummaryResponse) {
	if !e.config.Enabled || summary == nil {
		return
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.batch = append(e.batch, summary)

	if len(e.batch) >= e.config.BatchSize {
		go e.exportBatch()
	}
}

// periodicExport runs a background task to periodically flush the batch
func (e *SummaryExporter) periodicExport() {
	ticker := time.NewTicker(e.exportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.exportBatch()
		case <-e.exportContext.Done():
			return
		}
	}
}

// exportBatch delivers the current batch to the webhook
func (e *SummaryExporter) exportBatch() {
	e.mutex.Lock()

	if len(e.batch) == 0 {
		e.mutex.Unlock()
		return
	}

	summaries := make([]*model.UserSummaryResponse, len(e.batch))
	copy(summaries, e.batch)
	e.batch = make([]*model.UserSummaryResponse, 0, e.config.BatchSize)
	e.lastExport = time.Now()

	e.mutex.Unlock()

	if err := e.exportToWebhook(summaries); err != nil {
		logrus.Errorf("Failed to export summaries to webhook: %v", err)
		return
	}

	logrus.Infof("Exported %d user summaries", len(summaries))
}

func (e *SummaryExporter) exportToWebhook(summaries []*model.UserSummaryResponse) error {
	exportData := struct {
		Summaries  []*model.UserSummaryResponse `json:"summaries"`
		ExportTime string                       `json:"export_time"`
		Count      int                          `json:"count"`
	}{
		Summaries:  summaries,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(summaries),
	}

	jsonData, err := json.Marshal(exportData)
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}

	req, err := http.NewRequest("POST", e.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.config.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	return nil
}

// Stop cleanly stops the exporter, flushing any queued summaries
func (e *SummaryExporter) Stop() {
	if e.exportCancel != nil {
		e.exportCancel()
	}

	e.exportBatch()
}

// Status returns the current status of the exporter
func (e *SummaryExporter) Status() map[string]interface{} {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	status := map[string]interface{}{
		"enabled":         e.config.Enabled,
		"batch_size":      e.config.BatchSize,
		"export_interval": e.exportInterval.String(),
		"current_batch":   len(e.batch),
	}

	if !e.lastExport.IsZero() {
		status["last_export"] = e.lastExport.Format(time.RFC3339)
	}

	return status
}
