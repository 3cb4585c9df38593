package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"alert_center/core/api/dto"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/api/services"
	"alert_center/core/common"
)

// DeliveryRuleHandler xử lý các request liên quan đến Delivery Rule
type DeliveryRuleHandler struct {
	BaseHandler[models.DeliveryRule, dto.DeliveryRuleCreateInput, dto.DeliveryRuleUpdateInput]
	ruleService    *services.DeliveryRuleService
	channelService *services.DeliveryChannelService
	chainService   *services.EscalationChainService
}

// NewDeliveryRuleHandler tạo mới DeliveryRuleHandler
func NewDeliveryRuleHandler() (*DeliveryRuleHandler, error) {
	ruleService, err := services.NewDeliveryRuleService()
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery rule service: %v", err)
	}
	channelService, err := services.NewDeliveryChannelService()
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery channel service: %v", err)
	}
	chainService, err := services.NewEscalationChainService()
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation chain service: %v", err)
	}

	baseHandler := NewBaseHandler[models.DeliveryRule, dto.DeliveryRuleCreateInput, dto.DeliveryRuleUpdateInput](ruleService)
	return &DeliveryRuleHandler{
		BaseHandler:    *baseHandler,
		ruleService:    ruleService,
		channelService: channelService,
		chainService:   chainService,
	}, nil
}

// validateTarget đảm bảo target có đúng một trong hai: channelIds hoặc chainId
func validateRuleTarget(target models.RuleTarget) error {
	hasChannels := len(target.ChannelIDs) > 0
	hasChain := target.ChainID != nil && !target.ChainID.IsZero()

	if hasChannels == hasChain {
		return common.NewError(
			common.ErrCodeValidationInput,
			"Target của rule phải có đúng một trong hai: channelIds hoặc chainId",
			common.StatusBadRequest,
			nil,
		)
	}
	return nil
}

// validateRuleOwnership đảm bảo mọi channel/chain trong target thuộc cùng owner với rule
func validateRuleOwnership(rule models.DeliveryRule, channels []models.DeliveryChannel, chain *models.EscalationChain) error {
	for _, channel := range channels {
		if channel.OwnerUserID != rule.OwnerUserID {
			return common.NewError(
				common.ErrCodeValidationInput,
				"Channel trong target phải thuộc cùng owner với rule",
				common.StatusBadRequest,
				nil,
			)
		}
	}
	if chain != nil && chain.OwnerUserID != rule.OwnerUserID {
		return common.NewError(
			common.ErrCodeValidationInput,
			"Chain trong target phải thuộc cùng owner với rule",
			common.StatusBadRequest,
			nil,
		)
	}
	return nil
}

// checkTargetOwnership đọc các channel/chain của target rồi so khớp owner
func (h *DeliveryRuleHandler) checkTargetOwnership(ctx context.Context, rule models.DeliveryRule) error {
	var channels []models.DeliveryChannel
	if len(rule.Target.ChannelIDs) > 0 {
		found, err := h.channelService.FindByIDs(ctx, rule.Target.ChannelIDs)
		if err != nil {
			return err
		}
		channels = found
	}

	var chain *models.EscalationChain
	if rule.Target.ChainID != nil && !rule.Target.ChainID.IsZero() {
		found, err := h.chainService.FindOneById(ctx, *rule.Target.ChainID)
		if err != nil {
			return err
		}
		chain = &found
	}

	return validateRuleOwnership(rule, channels, chain)
}

// InsertOne override để validate target: channelIds và chainId loại trừ lẫn nhau,
// và channel/chain được trỏ tới phải thuộc cùng owner với rule
func (h *DeliveryRuleHandler) InsertOne(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		input := new(models.DeliveryRule)
		if err := h.ParseRequestBody(c, input); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		if err := validateRuleTarget(input.Target); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		if err := h.checkTargetOwnership(c.Context(), *input); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		data, err := h.ruleService.InsertOne(c.Context(), *input)
		h.HandleResponse(c, data, err)
		return nil
	})
}
