// Package feedback packages finished decisions for later human-rating
// capture. The pipeline's terminal stage hands every decision here; what a
// collector does with it (publish, buffer, drop) is its own business and can
// never fail the request.
package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
	"github.com/VoxalyAI/voxaly-mvp/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// Subject is the NATS subject feedback records are published on.
const Subject = "core.feedback"

// Record is one decision outcome awaiting an advisor rating. AdvisorRating
// stays nil until the after-call review fills it in.
type Record struct {
	RequestID     string              `json:"request_id"`
	Decision      domain.Decision     `json:"decision"`
	TopHit        *domain.RetrievalHit `json:"retrieved_top,omitempty"`
	Mode          string              `json:"mode"` // "rules" or "generative"
	At            time.Time           `json:"at"`
	AdvisorRating *int                `json:"advisor_rating"`
}

// Collector receives feedback records. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Collector interface {
	Collect(ctx context.Context, rec Record)
}

// NATSCollector publishes records to the feedback subject for the rating
// service to pick up. Publish failures are logged and dropped; feedback
// never fails the request that produced it.
type NATSCollector struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewNATSCollector creates a collector over an existing NATS connection.
func NewNATSCollector(nc *nats.Conn, logger *slog.Logger) *NATSCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSCollector{nc: nc, logger: logger}
}

// Collect publishes the record.
func (c *NATSCollector) Collect(ctx context.Context, rec Record) {
	if err := natsutil.Publish(ctx, c.nc, Subject, rec); err != nil {
		c.logger.Warn("feedback publish failed, dropping record",
			"request_id", rec.RequestID, "err", err)
	}
}

// Discard is a Collector that drops everything. Used when no feedback bus
// is configured.
type Discard struct{}

// Collect drops the record.
func (Discard) Collect(context.Context, Record) {}
