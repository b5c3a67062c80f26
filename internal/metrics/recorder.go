package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/loop-logic-core/internal/infrastructure/config"
)

// Domain errors for the metrics package.
var (
	// ErrDisabled is returned when connecting with metrics disabled.
	ErrDisabled = errors.New("metrics: influxdb disabled")

	// ErrConnectionFailed is returned when the server cannot be reached.
	ErrConnectionFailed = errors.New("metrics: connection failed")
)

// Default timeouts and batching for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Sample is one circuit-utilization observation. Utilization is always
// derived live from circuit state by the caller; the recorder only ships
// the numbers.
type Sample struct {
	PanelID            string
	CircuitID          string
	DeviceCount        int
	DeviceUtilization  float64
	CurrentUtilization float64
	TotalCurrent       float64
}

// Recorder ships circuit-utilization samples to InfluxDB.
//
// Writes are non-blocking and batched by the underlying client. A nil
// *Recorder is a valid no-op, mirroring the optional event feed.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// Connect creates a recorder against the configured InfluxDB server.
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Recorder: Connected recorder ready for use
//   - error: If metrics are disabled or the server is unreachable
func Connect(cfg config.InfluxDBConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}, nil
}

// RecordUtilization writes one sample per circuit to the
// circuit_utilization measurement. Nil recorders drop the samples.
func (r *Recorder) RecordUtilization(samples []Sample) {
	if r == nil {
		return
	}
	now := time.Now()
	for _, s := range samples {
		point := write.NewPoint(
			"circuit_utilization",
			map[string]string{
				"panel_id":   s.PanelID,
				"circuit_id": s.CircuitID,
			},
			map[string]interface{}{
				"device_count":        s.DeviceCount,
				"device_utilization":  s.DeviceUtilization,
				"current_utilization": s.CurrentUtilization,
				"total_current":       s.TotalCurrent,
			},
			now,
		)
		r.writeAPI.WritePoint(point)
	}
}

// Close flushes pending writes and shuts the client down.
func (r *Recorder) Close() {
	if r == nil || r.client == nil {
		return
	}
	r.writeAPI.Flush()
	r.client.Close()
}
