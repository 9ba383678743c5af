package models

import "time"

type Company struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	StockID   string `gorm:"uniqueIndex" json:"stock_id"`
	Name      string `json:"name"`
	NameEn    string `json:"name_en"`
	Market    string `json:"market"` // sii, otc, rotc, pub
	Industry  string `json:"industry"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
