package models

import (
	"github.com/shopspring/decimal"
)

// Product представляет товар каталога.
// Для движка синхронизации поля непрозрачны, структура используется
// только для проверки схемы payload при upsert.
type Product struct {
	Price      *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`           // Price цена, неотрицательная
	Active     *bool            `json:"active,omitempty"`                                     // Active доступен ли товар к продаже
	ID         string           `json:"id" validate:"required,max=128"`                       // ID идентификатор товара
	Name       string           `json:"name" validate:"required,max=200"`                     // Name название товара
	SKU        string           `json:"sku,omitempty" validate:"omitempty,max=64"`            // SKU артикул
	CategoryID string           `json:"categoryId,omitempty" validate:"omitempty,max=128"`    // CategoryID ссылка на категорию
	ImageURL   string           `json:"imageUrl,omitempty" validate:"omitempty,url,max=2048"` // ImageURL ссылка на изображение
}

// Category представляет категорию каталога
type Category struct {
	Position *int   `json:"position,omitempty" validate:"omitempty,gte=0"`              // Position порядок сортировки
	ID       string `json:"id" validate:"required,max=128"`                             // ID идентификатор категории
	Name     string `json:"name" validate:"required,max=200"`                           // Name название категории
	ParentID string `json:"parentId,omitempty" validate:"omitempty,max=128,nefield=ID"` // ParentID родительская категория
}

// NewPayload возвращает пустую типизированную структуру payload для kind.
func NewPayload(kind EntityKind) (any, bool) {
	switch kind {
	case EntityProduct:
		return &Product{}, true
	case EntityCategory:
		return &Category{}, true
	default:
		return nil, false
	}
}
