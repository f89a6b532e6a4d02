// Package influx ships render telemetry to an optional InfluxDB sink.
package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Manager handles the InfluxDB connection and async writes. The sink is
// strictly optional: when the client is not valid every write degrades to a
// silent no-op so the render pipeline never blocks on telemetry.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Bucket  string
	Logger  zerolog.Logger
}

// RenderMetric describes one completed overlay build.
type RenderMetric struct {
	SessionID  string
	Segment    int
	Kind       string
	Duration   time.Duration
	Width      int
	Height     int
	PointCount int
	Stale      bool
}

// IngestMetric describes one ingested track file.
type IngestMetric struct {
	SessionID  string
	Activity   string
	PointCount int
	DistanceKm float64
	Segments   int
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
	}
}

// Connect establishes a connection to InfluxDB.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Bucket = viper.GetString("influx.bucket")
	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Msg("InfluxDB unreachable, continuing without render telemetry")
		return nil
	}
	m.IsValid = true

	if err := m.setupOrganizationAndBucket(); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Msg("InfluxDB client initialized")

	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	_, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure the telemetry bucket exists with 90 day retention
	_, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Bucket)
	if err != nil {
		m.Logger.Info().Str("bucket", m.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), m.Bucket)

	errorsCh := m.Writer.Errors()
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(errorsCh)

	m.Logger.Debug().Msg("InfluxDB writer initialized")
}

// WriteRender records one overlay build. No-op when the sink is not valid.
func (m *Manager) WriteRender(metric RenderMetric) {
	if !m.IsValid || m.Writer == nil {
		return
	}

	point := influxdb2_write.NewPointWithMeasurement("overlay_build").
		AddTag("session", metric.SessionID).
		AddTag("kind", metric.Kind).
		AddTag("stale", strconv.FormatBool(metric.Stale)).
		AddField("segment", metric.Segment).
		AddField("duration_ms", metric.Duration.Milliseconds()).
		AddField("width", metric.Width).
		AddField("height", metric.Height).
		AddField("points", metric.PointCount).
		SetTime(time.Now())

	m.Writer.WritePoint(point)
}

// WriteIngest records one ingested file. No-op when the sink is not valid.
func (m *Manager) WriteIngest(metric IngestMetric) {
	if !m.IsValid || m.Writer == nil {
		return
	}

	point := influxdb2_write.NewPointWithMeasurement("session_ingest").
		AddTag("session", metric.SessionID).
		AddTag("activity", metric.Activity).
		AddField("points", metric.PointCount).
		AddField("distance_km", metric.DistanceKm).
		AddField("segments", metric.Segments).
		SetTime(time.Now())

	m.Writer.WritePoint(point)
}

// Close flushes pending writes and shuts the client down.
func (m *Manager) Close() {
	if m.Client == nil {
		return
	}
	if m.Writer != nil {
		m.Writer.Flush()
	}
	m.Client.Close()
}
