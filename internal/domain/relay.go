package domain

import (
	"context"
	"log/slog"
)

// Relay forwards payloads between paired users and mirrors each one to the
// oversight chat. The primary delivery and the mirror are independent
// best-effort sends: either may fail without aborting the other, and nothing
// is retried. At-most-once per attempted send.
type Relay struct {
	sessions     *SessionManager
	sender       Sender
	correlations CorrelationRepository
	oversightID  int64
	logger       *slog.Logger
}

// NewRelay creates a Relay. oversightID is the fixed chat receiving
// annotated copies of every relayed payload.
func NewRelay(sessions *SessionManager, sender Sender, correlations CorrelationRepository, oversightID int64, logger *slog.Logger) *Relay {
	return &Relay{
		sessions:     sessions,
		sender:       sender,
		correlations: correlations,
		oversightID:  oversightID,
		logger:       logger,
	}
}

// Forward delivers the payload to the sender's session partner and mirrors
// an annotated copy to the oversight chat. On successful primary delivery it
// upserts the correlation record mapping the sender's message id to the
// delivered copy's id. Fails with ErrNoActivePartner when the sender has no
// live session; any other failure is logged and absorbed.
func (r *Relay) Forward(ctx context.Context, from *User, senderMsgID int64, payload Payload) error {
	partnerID, inChat, err := r.sessions.Partner(ctx, from.ID)
	if err != nil {
		return err
	}
	if !inChat {
		return ErrNoActivePartner
	}

	deliveredID, sendErr := r.sender.Send(ctx, partnerID, payload)
	if sendErr != nil {
		r.logger.Warn("primary delivery failed",
			"sender_id", from.ID,
			"partner_id", partnerID,
			"kind", payload.Kind,
			"error", sendErr,
		)
	}

	r.mirror(ctx, from, payload)

	if sendErr == nil {
		rec := &CorrelationRecord{
			SenderID:      from.ID,
			ReceiverID:    partnerID,
			SenderMsgID:   senderMsgID,
			ReceiverMsgID: deliveredID,
		}
		if err := r.correlations.UpsertCorrelation(ctx, rec); err != nil {
			r.logger.Error("correlation record write failed",
				"sender_id", from.ID,
				"sender_msg_id", senderMsgID,
				"error", err,
			)
		}
	}

	return nil
}

// mirror sends the annotated oversight copies. Failures are logged only.
func (r *Relay) mirror(ctx context.Context, from *User, payload Payload) {
	for _, copy := range payload.Annotated(from.Handle) {
		if _, err := r.sender.Send(ctx, r.oversightID, copy); err != nil {
			r.logger.Warn("mirror delivery failed",
				"sender_id", from.ID,
				"kind", copy.Kind,
				"error", err,
			)
		}
	}
}
