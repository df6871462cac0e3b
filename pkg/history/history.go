// Package history records completed processing runs so operators can inspect
// recent activity. Two stores are provided: an in-memory ring for tests and
// single-process deployments, and a MongoDB store for durable shared history.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/geoclear/engine/pkg/pipeline"
)

// Record is one completed processing run.
type Record struct {
	ID                string    `json:"id" bson:"_id"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	FeatureCount      int       `json:"feature_count" bson:"feature_count"`
	ConflictsDetected int       `json:"conflicts_detected" bson:"conflicts_detected"`
	ConflictsResolved int       `json:"conflicts_resolved" bson:"conflicts_resolved"`
	FeaturesDisplaced int       `json:"features_displaced" bson:"features_displaced"`
	TopologyPreserved bool      `json:"topology_preserved" bson:"topology_preserved"`
	DurationMillis    float64   `json:"duration_ms" bson:"duration_ms"`
	CacheHit          bool      `json:"cache_hit" bson:"cache_hit"`
}

// NewRecord summarizes a pipeline result into a history record.
func NewRecord(res *pipeline.Result, cacheHit bool) Record {
	return Record{
		ID:                uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		FeatureCount:      res.Metrics.TotalFeatures,
		ConflictsDetected: res.TotalConflictsDetected,
		ConflictsResolved: res.TotalConflictsResolved,
		FeaturesDisplaced: res.Metrics.FeaturesDisplaced,
		TopologyPreserved: res.TopologyPreserved,
		DurationMillis:    res.Metrics.TotalMillis,
		CacheHit:          cacheHit,
	}
}

// Store persists run records.
type Store interface {
	// Append saves one record.
	Append(ctx context.Context, rec Record) error

	// List returns the most recent records, newest first, up to limit.
	List(ctx context.Context, limit int) ([]Record, error)

	// Close releases store resources.
	Close(ctx context.Context) error
}
