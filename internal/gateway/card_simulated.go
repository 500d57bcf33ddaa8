package gateway

import (
	"context"

	"github.com/google/uuid"
)

// SimulatedCardProcessor approves every payment with a synthetic reference.
// It stands in for the live processor in development and tests and is chosen
// by configuration, never by a branch inside the live client.
type SimulatedCardProcessor struct {
	// DeclineAll flips the simulator into declining every payment.
	DeclineAll bool
}

// Pay returns a synthetic approval (or decline when DeclineAll is set).
func (p SimulatedCardProcessor) Pay(_ context.Context, _ CardPayment) (ProcessorDecision, error) {
	if p.DeclineAll {
		return ProcessorDecision{Approved: false, DeclineReason: "simulated decline"}, nil
	}
	return ProcessorDecision{Approved: true, TransactionID: "sim-" + uuid.NewString()}, nil
}
