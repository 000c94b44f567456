package events

import (
	"context"

	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
)

// SubjectRiskPrefix is followed by the risk kind, e.g. risk.daily_loss.
const SubjectRiskPrefix = "risk."

// PublishingRiskHook forwards risk events to the message bus.
type PublishingRiskHook struct {
	publisher interfaces.IPublisher
	logger    *logger.Logger
}

func NewPublishingRiskHook(publisher interfaces.IPublisher, log *logger.Logger) *PublishingRiskHook {
	return &PublishingRiskHook{publisher: publisher, logger: log}
}

func (h *PublishingRiskHook) OnRiskEvent(ctx context.Context, event models.MRiskEvent) {
	if err := h.publisher.Publish(ctx, SubjectRiskPrefix+event.Kind, event); err != nil {
		h.logger.Warning("failed to publish %s risk event for user %s: %v", event.Kind, event.UserID, err)
	}
}
