package global

import (
	"alert_center/config"
	"alert_center/core/registry"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDB_CollectionName chứa tên các collection trong MongoDB
type MongoDB_CollectionName struct {
	// Cấu hình định tuyến và escalation
	DeliveryChannels string // Tên collection cho các kênh gửi notification
	DeliveryRules    string // Tên collection cho các rule định tuyến
	EscalationChains string // Tên collection cho các chuỗi escalation

	// Dữ liệu runtime của engine
	NotificationEvents string // Tên collection cho các event đã nhận
	EscalationRuns     string // Tên collection cho các escalation run
	DeliveryAttempts   string // Tên collection cho lịch sử các lần gửi
	RunTransitions     string // Tên collection cho lịch sử chuyển trạng thái của run
}

// Các biến toàn cục
var Validate *validator.Validate                              // Biến để xác thực dữ liệu
var MongoDB_Session *mongo.Client                             // Phiên kết nối tới MongoDB
var ServerConfig *config.Configuration                        // Cấu hình của server
var MongoDB_ColNames = *new(MongoDB_CollectionName)           // Tên các collection

// Các Registry
var RegistryCollections = registry.NewRegistry[*mongo.Collection]() // Registry chứa các collections
var RegistryDatabase = registry.NewRegistry[*mongo.Database]()      // Registry chứa các databases
