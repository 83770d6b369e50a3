// Package reports renders aggregate laboratory reports to stored artifacts
// asynchronously: callers enqueue an export, a worker builds the report from
// the live service and writes one artifact per requested format to the blob
// store.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"chemlab/internal/blob"
	"chemlab/internal/core"

	"github.com/google/uuid"
)

// Kind selects which aggregate report an export renders.
type Kind string

const (
	KindInventory  Kind = "inventory"
	KindUsage      Kind = "usage"
	KindStatistics Kind = "statistics"
	KindIndicators Kind = "indicators"
	KindAlerts     Kind = "alerts"
)

// Format identifies an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// Artifact captures one stored report rendering.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export request and its resulting artifacts.
type ExportRecord struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Formats     []Format     `json:"formats"`
	Status      ExportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	Artifacts   []Artifact   `json:"artifacts,omitempty"`
	RequestedBy string       `json:"requested_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// ExportInput is an enqueue request for the worker.
type ExportInput struct {
	Kind        Kind
	Formats     []Format
	RequestedBy string
}

// Worker renders report exports asynchronously off an in-process queue.
type Worker struct {
	service *core.Service
	store   blob.Store

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker over the service and blob store.
func NewWorker(service *core.Service, store blob.Store) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: service,
		store:   store,
		queue:   make(chan string, 32),
		jobs:    make(map[string]*ExportRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue schedules an export and returns the queued record.
func (w *Worker) Enqueue(input ExportInput) (ExportRecord, error) {
	switch input.Kind {
	case KindInventory, KindUsage, KindStatistics, KindIndicators, KindAlerts:
	default:
		return ExportRecord{}, fmt.Errorf("unknown report kind %q", input.Kind)
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, format := range formats {
		if format != FormatJSON && format != FormatCSV {
			return ExportRecord{}, fmt.Errorf("unsupported format %q", format)
		}
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	now := time.Now().UTC()
	record := ExportRecord{
		ID:          uuid.NewString(),
		Kind:        input.Kind,
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.fail(record.ID, "export queue full")
		return ExportRecord{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(id string) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	w.mu.RUnlock()
	if !ok {
		return
	}
	kind := record.Kind
	formats := append([]Format(nil), record.Formats...)

	w.setStatus(id, ExportStatusRunning)

	payload, rows, err := w.render(kind)
	if err != nil {
		w.fail(id, fmt.Sprintf("render %s report: %v", kind, err))
		return
	}

	artifacts := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		var body []byte
		var contentType string
		switch format {
		case FormatJSON:
			body = payload
			contentType = "application/json"
		case FormatCSV:
			body, err = encodeCSV(rows)
			if err != nil {
				w.fail(id, fmt.Sprintf("encode csv: %v", err))
				return
			}
			contentType = "text/csv"
		}
		key := fmt.Sprintf("reports/%s/%s.%s", kind, id, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(body), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"kind": string(kind), "export_id": id},
		})
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   info.Size,
			URL:         info.URL,
			CreatedAt:   info.LastModified,
		})
	}
	w.complete(id, artifacts)
}

func (w *Worker) setStatus(id string, status ExportStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = time.Now().UTC()
	}
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
}

// render builds the report, returning the JSON payload and the tabular rows
// used for CSV rendering (header row first).
func (w *Worker) render(kind Kind) ([]byte, [][]string, error) {
	ctx := w.ctx
	switch kind {
	case KindInventory:
		report, err := w.service.InventoryReport(ctx)
		if err != nil {
			return nil, nil, err
		}
		rows := [][]string{{"metric", "value"},
			{"total_reagents", strconv.Itoa(report.TotalReagents)},
			{"total_value", formatFloat(report.TotalValue)},
			{"low_stock", strconv.Itoa(report.LowStock)},
			{"expired", strconv.Itoa(report.Expired)},
		}
		for _, category := range sortedKeys(report.Categories) {
			rows = append(rows, []string{"category:" + category, strconv.Itoa(report.Categories[category])})
		}
		for _, location := range sortedKeys(report.Locations) {
			rows = append(rows, []string{"location:" + location, strconv.Itoa(report.Locations[location])})
		}
		return marshalReport(report, rows)
	case KindUsage:
		stats, err := w.service.UsageStatistics(ctx)
		if err != nil {
			return nil, nil, err
		}
		rows := [][]string{{"reagent", "used"}}
		for _, name := range sortedFloatKeys(stats.PerReagent) {
			rows = append(rows, []string{name, formatFloat(stats.PerReagent[name])})
		}
		return marshalReport(stats, rows)
	case KindStatistics:
		stats, err := w.service.Statistics(ctx)
		if err != nil {
			return nil, nil, err
		}
		rows := [][]string{{"recipe", "count", "successes", "success_rate"}}
		names := make([]string, 0, len(stats.ByRecipe))
		for name := range stats.ByRecipe {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entry := stats.ByRecipe[name]
			rows = append(rows, []string{
				name,
				strconv.Itoa(entry.Count),
				strconv.Itoa(entry.Successes),
				formatFloat(entry.SuccessRate),
			})
		}
		return marshalReport(stats, rows)
	case KindIndicators:
		indicators, err := w.service.ManagementIndicators(ctx)
		if err != nil {
			return nil, nil, err
		}
		rows := [][]string{{"metric", "value"},
			{"success_rate", formatFloat(indicators.Efficiency.SuccessRate)},
			{"average_cost", formatFloat(indicators.Efficiency.AverageCost)},
			{"expired_rate", formatFloat(indicators.Safety.ExpiredRate)},
			{"low_stock_count", strconv.Itoa(indicators.Safety.LowStockCount)},
		}
		return marshalReport(indicators, rows)
	case KindAlerts:
		alerts, err := w.service.CheckAlerts(ctx)
		if err != nil {
			return nil, nil, err
		}
		rows := [][]string{{"kind", "reagent", "message"}}
		for _, alert := range alerts {
			rows = append(rows, []string{string(alert.Kind), alert.Reagent, alert.Message})
		}
		return marshalReport(alerts, rows)
	default:
		return nil, nil, fmt.Errorf("unknown report kind %q", kind)
	}
}

func marshalReport(v any, rows [][]string) ([]byte, [][]string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return payload, rows, nil
}

func encodeCSV(rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFloatKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
