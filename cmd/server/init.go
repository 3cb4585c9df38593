package main

import (
	"context"

	"alert_center/config"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/database"
	"alert_center/core/global"

	"github.com/sirupsen/logrus"
)

// Hàm khởi tạo các biến toàn cục
func InitGlobal() {
	initColNames()         // Khởi tạo tên các collection trong database
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initDatabase_MongoDB() // Khởi tạo kết nối database
}

// Hàm khởi tạo tên các collection trong database
func initColNames() {
	// Cấu hình định tuyến và escalation
	global.MongoDB_ColNames.DeliveryChannels = "delivery_channels"
	global.MongoDB_ColNames.DeliveryRules = "delivery_rules"
	global.MongoDB_ColNames.EscalationChains = "escalation_chains"

	// Dữ liệu runtime của engine
	global.MongoDB_ColNames.NotificationEvents = "notification_events"
	global.MongoDB_ColNames.EscalationRuns = "escalation_runs"
	global.MongoDB_ColNames.DeliveryAttempts = "delivery_attempts"
	global.MongoDB_ColNames.RunTransitions = "run_transitions"

	logrus.Info("Initialized collection names") // Ghi log thông báo đã khởi tạo tên các collection
}

// Hàm khởi tạo validator (dùng global.InitValidator để đăng ký custom validators: channel_kind, severity, exists)
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator") // Ghi log thông báo đã khởi tạo validator
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	global.ServerConfig = config.NewConfig()
	if global.ServerConfig == nil {
		logrus.Fatalf("Failed to initialize config: config is nil") // Ghi log lỗi nếu khởi tạo cấu hình thất bại
	}
	logrus.Info("Initialized server config") // Ghi log thông báo đã khởi tạo cấu hình server
}

// Hàm khởi tạo kết nối database
func initDatabase_MongoDB() {
	var err error
	global.MongoDB_Session, err = database.GetInstance(global.ServerConfig)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err) // Ghi log lỗi nếu kết nối database thất bại
	}
	logrus.Info("Connected to MongoDB") // Ghi log thông báo đã kết nối database thành công

	// Khởi tạo các db và collections nếu chưa có
	database.EnsureDatabaseAndCollections(global.MongoDB_Session)
	logrus.Info("Ensured database and collections") // Ghi log thông báo đã đảm bảo database và các collection

	// Khởi tạo các index cho các collection
	dbName := global.ServerConfig.MongoDB_DBName
	db := global.MongoDB_Session.Database(dbName)
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.DeliveryChannels), models.DeliveryChannel{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.DeliveryRules), models.DeliveryRule{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.EscalationChains), models.EscalationChain{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.NotificationEvents), models.NotificationEvent{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.EscalationRuns), models.EscalationRun{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.DeliveryAttempts), models.DeliveryAttempt{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.RunTransitions), models.RunTransition{})
}
