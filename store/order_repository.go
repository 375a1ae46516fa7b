package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/arhamfareed106/medusa-payment-backend/models"
)

// OrderRepository reads orders and carts owned by the checkout workflow.
type OrderRepository interface {
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	FindCart(ctx context.Context, id string) (*models.Cart, error)
}

type gormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) OrderRepository {
	return &gormOrderRepo{db: db}
}

// FindOrder loads the order together with its payment info, if any.
func (r *gormOrderRepo) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("PaymentInfo").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, mapErr(err)
	}
	return &order, nil
}

func (r *gormOrderRepo) FindCart(ctx context.Context, id string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cart).Error; err != nil {
		return nil, mapErr(err)
	}
	return &cart, nil
}
