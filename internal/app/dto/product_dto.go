package dto

import (
	"time"

	"github.com/mrops-br/products-service/internal/domain"
	"github.com/shopspring/decimal"
)

// ProductDTO is the flat projection of a product used at the service boundary
type ProductDTO struct {
	ID          int64           `json:"id,omitempty"`
	BarcodeID   string          `json:"barcode_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at,omitzero"`
	UpdatedAt   time.Time       `json:"updated_at,omitzero"`
}

// ToProductDTO converts a domain Product to ProductDTO
func ToProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		BarcodeID:   p.BarcodeID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ToProduct converts a ProductDTO to a domain Product
func ToProduct(d ProductDTO) *domain.Product {
	return &domain.Product{
		ID:          d.ID,
		BarcodeID:   d.BarcodeID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// ToProductDTOList converts a list of domain Products to a ProductDTO list
func ToProductDTOList(products []*domain.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = ToProductDTO(p)
	}
	return dtos
}
