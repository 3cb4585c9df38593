package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson"

	"alert_center/core/api/dto"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/api/services"
	"alert_center/core/common"
)

// DeliveryChannelHandler xử lý các request liên quan đến Delivery Channel
type DeliveryChannelHandler struct {
	BaseHandler[models.DeliveryChannel, dto.DeliveryChannelCreateInput, dto.DeliveryChannelUpdateInput]
	channelService *services.DeliveryChannelService
}

// NewDeliveryChannelHandler tạo mới DeliveryChannelHandler
func NewDeliveryChannelHandler() (*DeliveryChannelHandler, error) {
	channelService, err := services.NewDeliveryChannelService()
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery channel service: %v", err)
	}

	baseHandler := NewBaseHandler[models.DeliveryChannel, dto.DeliveryChannelCreateInput, dto.DeliveryChannelUpdateInput](channelService)
	return &DeliveryChannelHandler{
		BaseHandler:    *baseHandler,
		channelService: channelService,
	}, nil
}

// InsertOne override để validate uniqueness tên channel theo owner.
// Unique index channel_name_owner_unique là chốt chặn cuối, check trước để
// trả về lỗi rõ ràng thay vì lỗi duplicate key.
func (h *DeliveryChannelHandler) InsertOne(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		input := new(models.DeliveryChannel)
		if err := h.ParseRequestBody(c, input); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		filter := bson.M{
			"name":        input.Name,
			"ownerUserId": input.OwnerUserID,
		}
		count, err := h.channelService.CountDocuments(c.Context(), filter)
		if err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}
		if count > 0 {
			h.HandleResponse(c, nil, common.NewError(
				common.ErrCodeBusiness,
				fmt.Sprintf("Channel với tên '%s' đã tồn tại", input.Name),
				common.StatusConflict,
				nil,
			))
			return nil
		}

		data, err := h.channelService.InsertOne(c.Context(), *input)
		h.HandleResponse(c, data, err)
		return nil
	})
}

// DeleteById override để chặn xóa channel đang được rule hoặc chain tham chiếu.
// Logic kiểm tra tham chiếu nằm trong service.
func (h *DeliveryChannelHandler) DeleteById(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		id, err := h.GetObjectIDFromContext(c)
		if err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		err = h.channelService.DeleteById(c.Context(), id)
		h.HandleResponse(c, nil, err)
		return nil
	})
}
