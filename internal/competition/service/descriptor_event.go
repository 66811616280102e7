package service

import (
	"context"
	"encoding/json"

	"alchemy/internal/common/mq"
	"alchemy/internal/competition/model"
	appErr "alchemy/pkg/errors"
)

// HandleDescriptorMessage applies one message from the descriptor push
// topic. Every message fully replaces the stored descriptor.
func (s *CompetitionService) HandleDescriptorMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var payload model.DescriptorMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return appErr.Wrapf(err, appErr.EventDecodeFailed, "decode descriptor message failed")
	}
	if payload.Deleted {
		err := s.DeleteDescriptor(ctx, payload.Descriptor.ID)
		if appErr.Is(err, appErr.CompetitionNotFound) {
			return nil
		}
		return err
	}
	_, err := s.UpsertDescriptor(ctx, payload.Descriptor)
	return err
}
