package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/arhamfareed106/medusa-payment-backend/models"
)

var ErrNotFound = errors.New("store: record not found")

// Selector picks the single record an update applies to. A non-empty
// PaymentStatus makes the update conditional on the current status.
type Selector struct {
	ID            string
	PaymentStatus models.PaymentStatus
}

// Filter narrows List. Empty fields are ignored.
type Filter struct {
	TransactionID string
	PaymentStatus models.PaymentStatus
}

type PaymentInfoRepository interface {
	Create(ctx context.Context, info *models.OrderPaymentInfo) error
	Update(ctx context.Context, sel Selector, fields map[string]any) (*models.OrderPaymentInfo, error)
	List(ctx context.Context, f Filter) ([]models.OrderPaymentInfo, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.OrderPaymentInfo, error)
}

type gormPaymentInfoRepo struct {
	db *gorm.DB
}

func NewGormPaymentInfoRepo(db *gorm.DB) PaymentInfoRepository {
	return &gormPaymentInfoRepo{db: db}
}

func (r *gormPaymentInfoRepo) Create(ctx context.Context, info *models.OrderPaymentInfo) error {
	return r.db.WithContext(ctx).Create(info).Error
}

// Update applies fields in one UPDATE statement and returns the stored row.
func (r *gormPaymentInfoRepo) Update(ctx context.Context, sel Selector, fields map[string]any) (*models.OrderPaymentInfo, error) {
	if sel.ID == "" {
		return nil, ErrNotFound
	}

	q := r.db.WithContext(ctx).Model(&models.OrderPaymentInfo{}).Where("id = ?", sel.ID)
	if sel.PaymentStatus != "" {
		q = q.Where("payment_status = ?", sel.PaymentStatus)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var info models.OrderPaymentInfo
	if err := r.db.WithContext(ctx).Where("id = ?", sel.ID).First(&info).Error; err != nil {
		return nil, mapErr(err)
	}
	return &info, nil
}

// List returns matching records oldest first, so callers that take the
// first element get a stable tie-break on duplicate transaction ids.
func (r *gormPaymentInfoRepo) List(ctx context.Context, f Filter) ([]models.OrderPaymentInfo, error) {
	q := r.db.WithContext(ctx).Model(&models.OrderPaymentInfo{})
	if f.TransactionID != "" {
		q = q.Where("transaction_id = ?", f.TransactionID)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}

	var infos []models.OrderPaymentInfo
	if err := q.Order("created_at ASC").Order("id ASC").Find(&infos).Error; err != nil {
		return nil, err
	}
	return infos, nil
}

func (r *gormPaymentInfoRepo) GetByOrderID(ctx context.Context, orderID string) (*models.OrderPaymentInfo, error) {
	var info models.OrderPaymentInfo
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&info).Error; err != nil {
		return nil, mapErr(err)
	}
	return &info, nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
