package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/pricing"
	"github.com/arhamfareed106/medusa-payment-backend/store"
)

var errDB = errors.New("connection reset")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func TestCanTransition(t *testing.T) {
	all := []models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusAwaiting, models.PaymentStatusPaid}
	for _, from := range all {
		for _, to := range all {
			want := from == models.PaymentStatusAwaiting && to == models.PaymentStatusPaid
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, models.PaymentStatusPending, InitialStatus(models.PaymentMethodCOD))
	assert.Equal(t, models.PaymentStatusAwaiting, InitialStatus(models.PaymentMethodBankTransfer))
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()

	var tests = []struct {
		name        string
		in          CompleteInput
		service     func(infos *PaymentInfoRepoMock, orders *OrderRepoMock)
		check       func(t *testing.T, info *models.OrderPaymentInfo)
		expectedErr error
	}{
		{
			name: "invalid method",
			in:   CompleteInput{OrderID: "order_1", Method: "card"},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
			},
			expectedErr: ErrInvalidMethod,
		},
		{
			name: "bank transfer without transaction id",
			in:   CompleteInput{OrderID: "order_1", Method: models.PaymentMethodBankTransfer, TransactionID: "   "},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
			},
			expectedErr: ErrTransactionIDRequired,
		},
		{
			name: "order not found",
			in:   CompleteInput{OrderID: "order_404", Method: models.PaymentMethodCOD},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_404").Return(nil, store.ErrNotFound)
			},
			expectedErr: ErrOrderNotFound,
		},
		{
			name: "negative total",
			in:   CompleteInput{OrderID: "order_1", Method: models.PaymentMethodCOD},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", Total: dec("-1")}, nil)
			},
			expectedErr: ErrInvalidTotal,
		},
		{
			name: "cod creates pending record with fee",
			in:   CompleteInput{OrderID: "order_1", Method: models.PaymentMethodCOD, TransactionID: "ignored"},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", Total: dec("5000")}, nil)
				infos.On("Create", ctx, mock.AnythingOfType("*models.OrderPaymentInfo")).Return(nil)
			},
			check: func(t *testing.T, info *models.OrderPaymentInfo) {
				assert.Equal(t, "order_1", info.OrderID)
				assert.Nil(t, info.TransactionID)
				assert.Equal(t, models.PaymentStatusPending, info.PaymentStatus)
				assert.Equal(t, models.PaymentMethodCOD, info.PaymentMethod)
				assert.True(t, dec("5000").Equal(info.OriginalTotal.Decimal))
				assert.True(t, dec("350").Equal(info.AdjustmentAmount.Decimal))
				assert.True(t, dec("5350").Equal(info.AdjustedTotal.Decimal))
				assert.True(t, info.TotalsConsistent())
			},
		},
		{
			name: "bank transfer creates awaiting record with discount",
			in:   CompleteInput{OrderID: "order_2", Method: models.PaymentMethodBankTransfer, TransactionID: " 419290 "},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_2").Return(&models.Order{ID: "order_2", Total: dec("10000")}, nil)
				infos.On("Create", ctx, mock.AnythingOfType("*models.OrderPaymentInfo")).Return(nil)
			},
			check: func(t *testing.T, info *models.OrderPaymentInfo) {
				require.NotNil(t, info.TransactionID)
				assert.Equal(t, "419290", *info.TransactionID)
				assert.Equal(t, models.PaymentStatusAwaiting, info.PaymentStatus)
				assert.True(t, dec("-500").Equal(info.AdjustmentAmount.Decimal))
				assert.True(t, dec("9500").Equal(info.AdjustedTotal.Decimal))
			},
		},
		{
			name: "existing record of the same method is re-seeded",
			in:   CompleteInput{OrderID: "order_3", Method: models.PaymentMethodBankTransfer, TransactionID: "222"},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				existing := &models.OrderPaymentInfo{
					ID: "pi_3", OrderID: "order_3",
					TransactionID: strPtr("111"),
					PaymentStatus: models.PaymentStatusAwaiting,
					PaymentMethod: models.PaymentMethodBankTransfer,
				}
				orders.On("FindOrder", ctx, "order_3").Return(&models.Order{ID: "order_3", Total: dec("2000"), PaymentInfo: existing}, nil)
				guarded := store.Selector{ID: "pi_3", PaymentStatus: models.PaymentStatusAwaiting}
				infos.On("Update", ctx, guarded, mock.MatchedBy(func(f map[string]any) bool {
					tid, ok := f["transaction_id"].(*string)
					adjusted, _ := f["adjusted_total"].(decimal.NullDecimal)
					_, methodSet := f["payment_method"]
					return ok && tid != nil && *tid == "222" &&
						f["payment_status"] == models.PaymentStatusAwaiting &&
						!methodSet &&
						adjusted.Decimal.Equal(dec("1900")) &&
						len(f) == 5
				})).Return(&models.OrderPaymentInfo{ID: "pi_3", OrderID: "order_3", TransactionID: strPtr("222"), PaymentStatus: models.PaymentStatusAwaiting, PaymentMethod: models.PaymentMethodBankTransfer}, nil)
			},
			check: func(t *testing.T, info *models.OrderPaymentInfo) {
				assert.Equal(t, "pi_3", info.ID)
				require.NotNil(t, info.TransactionID)
				assert.Equal(t, "222", *info.TransactionID)
			},
		},
		{
			name: "paid record is not rewritten",
			in:   CompleteInput{OrderID: "order_4", Method: models.PaymentMethodCOD},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				existing := &models.OrderPaymentInfo{
					ID: "pi_4", OrderID: "order_4",
					PaymentStatus: models.PaymentStatusPaid,
					PaymentMethod: models.PaymentMethodCOD,
				}
				orders.On("FindOrder", ctx, "order_4").Return(&models.Order{ID: "order_4", Total: dec("2000"), PaymentInfo: existing}, nil)
			},
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "paid bank transfer cannot switch to cod",
			in:   CompleteInput{OrderID: "order_5", Method: models.PaymentMethodCOD},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				existing := &models.OrderPaymentInfo{
					ID: "pi_5", OrderID: "order_5",
					TransactionID: strPtr("419290"),
					PaymentStatus: models.PaymentStatusPaid,
					PaymentMethod: models.PaymentMethodBankTransfer,
				}
				orders.On("FindOrder", ctx, "order_5").Return(&models.Order{ID: "order_5", Total: dec("10000"), PaymentInfo: existing}, nil)
			},
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "method change on unpaid record is refused",
			in:   CompleteInput{OrderID: "order_6", Method: models.PaymentMethodBankTransfer, TransactionID: "333"},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				existing := &models.OrderPaymentInfo{
					ID: "pi_6", OrderID: "order_6",
					PaymentStatus: models.PaymentStatusPending,
					PaymentMethod: models.PaymentMethodCOD,
				}
				orders.On("FindOrder", ctx, "order_6").Return(&models.Order{ID: "order_6", Total: dec("2000"), PaymentInfo: existing}, nil)
			},
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "create error",
			in:   CompleteInput{OrderID: "order_1", Method: models.PaymentMethodCOD},
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", Total: dec("5000")}, nil)
				infos.On("Create", ctx, mock.Anything).Return(errDB)
			},
			expectedErr: errDB,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			infos, orders := new(PaymentInfoRepoMock), new(OrderRepoMock)
			tt.service(infos, orders)
			svc := NewService(infos, orders, pricing.DefaultCalculator(), zap.NewNop())

			info, err := svc.Complete(ctx, tt.in)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, info)
				infos.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			tt.check(t, info)
			infos.AssertExpectations(t)
			orders.AssertExpectations(t)
		})
	}
}

func TestService_Complete_ReseedLosesRaceToMatcher(t *testing.T) {
	ctx := context.Background()
	infos, orders := new(PaymentInfoRepoMock), new(OrderRepoMock)
	existing := &models.OrderPaymentInfo{
		ID: "pi_1", OrderID: "order_1",
		TransactionID: strPtr("111"),
		PaymentStatus: models.PaymentStatusAwaiting,
		PaymentMethod: models.PaymentMethodBankTransfer,
	}
	orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", Total: dec("2000"), PaymentInfo: existing}, nil)
	infos.On("Update", ctx, store.Selector{ID: "pi_1", PaymentStatus: models.PaymentStatusAwaiting}, mock.Anything).
		Return(nil, store.ErrNotFound)

	svc := NewService(infos, orders, pricing.DefaultCalculator(), zap.NewNop())
	info, err := svc.Complete(ctx, CompleteInput{OrderID: "order_1", Method: models.PaymentMethodBankTransfer, TransactionID: "222"})

	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, info)
	infos.AssertExpectations(t)
}

func TestService_MarkPaid(t *testing.T) {
	ctx := context.Background()
	guarded := store.Selector{ID: "pi_1", PaymentStatus: models.PaymentStatusAwaiting}
	paidFields := map[string]any{"payment_status": models.PaymentStatusPaid}

	var tests = []struct {
		name        string
		rec         *models.OrderPaymentInfo
		service     func(infos *PaymentInfoRepoMock)
		expectedErr error
	}{
		{
			name:        "nil record",
			rec:         nil,
			service:     func(infos *PaymentInfoRepoMock) {},
			expectedErr: ErrNoPaymentInfo,
		},
		{
			name:        "pending cannot become paid automatically",
			rec:         &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPending},
			service:     func(infos *PaymentInfoRepoMock) {},
			expectedErr: ErrInvalidTransition,
		},
		{
			name:        "already paid",
			rec:         &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPaid},
			service:     func(infos *PaymentInfoRepoMock) {},
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "changed since read",
			rec:  &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusAwaiting},
			service: func(infos *PaymentInfoRepoMock) {
				infos.On("Update", ctx, guarded, paidFields).Return(nil, store.ErrNotFound)
			},
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "store error",
			rec:  &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusAwaiting},
			service: func(infos *PaymentInfoRepoMock) {
				infos.On("Update", ctx, guarded, paidFields).Return(nil, errDB)
			},
			expectedErr: errDB,
		},
		{
			name: "awaiting becomes paid",
			rec:  &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusAwaiting},
			service: func(infos *PaymentInfoRepoMock) {
				infos.On("Update", ctx, guarded, paidFields).
					Return(&models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPaid}, nil)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			infos := new(PaymentInfoRepoMock)
			tt.service(infos)
			svc := NewService(infos, new(OrderRepoMock), pricing.DefaultCalculator(), nil)

			got, err := svc.MarkPaid(ctx, tt.rec)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
			infos.AssertExpectations(t)
		})
	}
}

func TestService_MarkPaid_GuardSkipsStore(t *testing.T) {
	infos := new(PaymentInfoRepoMock)
	svc := NewService(infos, new(OrderRepoMock), pricing.DefaultCalculator(), nil)

	_, err := svc.MarkPaid(context.Background(), &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPending})
	require.ErrorIs(t, err, ErrInvalidTransition)
	infos.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Override(t *testing.T) {
	ctx := context.Background()

	var tests = []struct {
		name        string
		orderID     string
		status      models.PaymentStatus
		service     func(infos *PaymentInfoRepoMock, orders *OrderRepoMock)
		expectedErr error
	}{
		{
			name:        "invalid status",
			orderID:     "order_1",
			status:      "refunded",
			service:     func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {},
			expectedErr: ErrInvalidStatus,
		},
		{
			name:    "order not found",
			orderID: "order_404",
			status:  models.PaymentStatusPaid,
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_404").Return(nil, store.ErrNotFound)
			},
			expectedErr: ErrOrderNotFound,
		},
		{
			name:    "order without payment info",
			orderID: "order_1",
			status:  models.PaymentStatusPaid,
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1"}, nil)
			},
			expectedErr: ErrNoPaymentInfo,
		},
		{
			name:    "pending to paid is allowed",
			orderID: "order_1",
			status:  models.PaymentStatusPaid,
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", PaymentInfo: &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPending}}, nil)
				infos.On("Update", ctx, store.Selector{ID: "pi_1"}, map[string]any{"payment_status": models.PaymentStatusPaid}).
					Return(&models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPaid}, nil)
			},
		},
		{
			name:    "store error",
			orderID: "order_1",
			status:  models.PaymentStatusAwaiting,
			service: func(infos *PaymentInfoRepoMock, orders *OrderRepoMock) {
				orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", PaymentInfo: &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPending}}, nil)
				infos.On("Update", ctx, store.Selector{ID: "pi_1"}, mock.Anything).Return(nil, errDB)
			},
			expectedErr: errDB,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			infos, orders := new(PaymentInfoRepoMock), new(OrderRepoMock)
			tt.service(infos, orders)
			svc := NewService(infos, orders, pricing.DefaultCalculator(), zap.NewNop())

			got, err := svc.Override(ctx, tt.orderID, tt.status)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.PaymentStatus)
			infos.AssertExpectations(t)
		})
	}
}

func TestService_Override_RegressionFromPaidIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)

	infos, orders := new(PaymentInfoRepoMock), new(OrderRepoMock)
	orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", PaymentInfo: &models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPaid}}, nil)
	infos.On("Update", ctx, store.Selector{ID: "pi_1"}, map[string]any{"payment_status": models.PaymentStatusPending}).
		Return(&models.OrderPaymentInfo{ID: "pi_1", PaymentStatus: models.PaymentStatusPending}, nil)

	svc := NewService(infos, orders, pricing.DefaultCalculator(), zap.New(core))
	got, err := svc.Override(ctx, "order_1", models.PaymentStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)

	warnings := logs.FilterMessage("payment status regressed from paid").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "pending", warnings[0].ContextMap()["to"])
}

func TestService_GetByOrder(t *testing.T) {
	ctx := context.Background()
	info := &models.OrderPaymentInfo{ID: "pi_1", OrderID: "order_1"}

	orders := new(OrderRepoMock)
	orders.On("FindOrder", ctx, "order_1").Return(&models.Order{ID: "order_1", PaymentInfo: info}, nil)
	orders.On("FindOrder", ctx, "order_2").Return(&models.Order{ID: "order_2"}, nil)
	orders.On("FindOrder", ctx, "order_3").Return(nil, errDB)

	svc := NewService(new(PaymentInfoRepoMock), orders, pricing.DefaultCalculator(), nil)

	got, err := svc.GetByOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Same(t, info, got)

	got, err = svc.GetByOrder(ctx, "order_2")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.GetByOrder(ctx, "order_3")
	assert.ErrorIs(t, err, errDB)
	assert.NotErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.GetByOrder(ctx, " ")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
