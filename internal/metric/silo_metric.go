// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package metric

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded by the dispatch latency histogram
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SiloMetric groups the instruments of a silo.
//
// Instruments:
//   - silo.envelopes.received  (Int64Counter, by envelope kind)
//   - silo.dispatch.duration   (Float64Histogram, ms, by actor type, method and outcome)
//   - silo.mailbox.rejections  (Int64Counter, by actor type)
//   - silo.actors.active       (Int64ObservableGauge)
//   - silo.members.active      (Int64ObservableGauge)
type SiloMetric struct {
	siloID            attribute.KeyValue
	envelopesReceived metric.Int64Counter
	dispatchDuration  metric.Float64Histogram
	mailboxRejections metric.Int64Counter
	activeActors      metric.Int64ObservableGauge
	activeMembers     metric.Int64ObservableGauge
}

// NewSiloMetric creates the instruments of siloID with meter
func NewSiloMetric(meter metric.Meter, siloID string) (*SiloMetric, error) {
	instruments := &SiloMetric{siloID: attribute.String("silo.id", siloID)}
	var err error

	if instruments.envelopesReceived, err = meter.Int64Counter(
		"silo.envelopes.received",
		metric.WithDescription("Total number of envelopes received by the silo"),
	); err != nil {
		return nil, fmt.Errorf("failed to create envelopesReceived instrument, %w", err)
	}

	if instruments.dispatchDuration, err = meter.Float64Histogram(
		"silo.dispatch.duration",
		metric.WithDescription("The latency of actor method dispatches in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create dispatchDuration instrument, %w", err)
	}

	if instruments.mailboxRejections, err = meter.Int64Counter(
		"silo.mailbox.rejections",
		metric.WithDescription("Total number of envelopes rejected by full or stopped mailboxes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mailboxRejections instrument, %w", err)
	}

	if instruments.activeActors, err = meter.Int64ObservableGauge(
		"silo.actors.active",
		metric.WithDescription("Number of actors active on the silo"),
	); err != nil {
		return nil, fmt.Errorf("failed to create activeActors instrument, %w", err)
	}

	if instruments.activeMembers, err = meter.Int64ObservableGauge(
		"silo.members.active",
		metric.WithDescription("Number of active silos in the membership view"),
	); err != nil {
		return nil, fmt.Errorf("failed to create activeMembers instrument, %w", err)
	}

	return instruments, nil
}

// EnvelopeReceived counts an inbound envelope of kind
func (x *SiloMetric) EnvelopeReceived(ctx context.Context, kind string) {
	x.envelopesReceived.Add(ctx, 1, metric.WithAttributes(x.siloID, attribute.String("envelope.kind", kind)))
}

// MailboxRejected counts an envelope a mailbox of actorType refused
func (x *SiloMetric) MailboxRejected(ctx context.Context, actorType string) {
	x.mailboxRejections.Add(ctx, 1, metric.WithAttributes(x.siloID, attribute.String("actor.type", actorType)))
}

// ObserveDispatch records the latency of one dispatch
func (x *SiloMetric) ObserveDispatch(actorType, method string, elapsed time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	x.dispatchDuration.Record(context.Background(),
		float64(elapsed)/float64(time.Millisecond),
		metric.WithAttributes(
			x.siloID,
			attribute.String("actor.type", actorType),
			attribute.String("actor.method", method),
			attribute.String("outcome", outcome)))
}

// RegisterGauges observes the active actors and members on every collection.
// Unregister the returned registration when the silo stops.
func (x *SiloMetric) RegisterGauges(meter metric.Meter, actors, members func() int64) (metric.Registration, error) {
	return meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(x.activeActors, actors(), metric.WithAttributes(x.siloID))
		observer.ObserveInt64(x.activeMembers, members(), metric.WithAttributes(x.siloID))
		return nil
	}, x.activeActors, x.activeMembers)
}
