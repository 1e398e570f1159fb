package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"gorm.io/gorm"
)

// ProductFileRepository 产品附件仓库
type ProductFileRepository struct {
	db *gorm.DB
}

func NewProductFileRepository(db *gorm.DB) *ProductFileRepository {
	return &ProductFileRepository{db: db}
}

// Create 创建附件记录
func (r *ProductFileRepository) Create(ctx context.Context, file *entity.ProductFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// FindByID 根据ID查找附件
func (r *ProductFileRepository) FindByID(ctx context.Context, id string) (*entity.ProductFile, error) {
	var file entity.ProductFile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// FindByProductID 查询产品的全部附件
func (r *ProductFileRepository) FindByProductID(ctx context.Context, productID string) ([]entity.ProductFile, error) {
	var items []entity.ProductFile
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("uploaded_at DESC").
		Find(&items).Error
	return items, err
}
