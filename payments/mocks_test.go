package payments

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/store"
)

type PaymentInfoRepoMock struct {
	mock.Mock
}

func (m *PaymentInfoRepoMock) Create(ctx context.Context, info *models.OrderPaymentInfo) error {
	args := m.Called(ctx, info)
	return args.Error(0)
}

func (m *PaymentInfoRepoMock) Update(ctx context.Context, sel store.Selector, fields map[string]any) (*models.OrderPaymentInfo, error) {
	args := m.Called(ctx, sel, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderPaymentInfo), args.Error(1)
}

func (m *PaymentInfoRepoMock) List(ctx context.Context, f store.Filter) ([]models.OrderPaymentInfo, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderPaymentInfo), args.Error(1)
}

func (m *PaymentInfoRepoMock) GetByOrderID(ctx context.Context, orderID string) (*models.OrderPaymentInfo, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderPaymentInfo), args.Error(1)
}

type OrderRepoMock struct {
	mock.Mock
}

func (m *OrderRepoMock) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *OrderRepoMock) FindCart(ctx context.Context, id string) (*models.Cart, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}
