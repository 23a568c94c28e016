package models

const (
	DefaultJSONPath   = "rent_service_data.json"
	DefaultCSVPath    = "rent_service_data.csv"
	DefaultXLSXPath   = "rent_service_data.xlsx"
	DefaultSQLitePath = "data/catalog.db"
)

const (
	// DefaultStateTTL время жизни состояния диалога в Redis
	DefaultStateTTL = 24 * 60 * 60 // 24 часа в секундах

	// DefaultNotifyDaysBefore горизонт напоминаний о возврате по умолчанию
	DefaultNotifyDaysBefore = 3

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// DefaultSheetName лист каталога в Google Sheets
	DefaultSheetName = "Catalog"
)
