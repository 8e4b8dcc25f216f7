package infra

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePackingSlipPDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "slips")
	order := &model.Order{
		ID:          uuid.New(),
		Status:      model.OrderPreparing,
		Subtotal:    decimal.RequireFromString("45.00"),
		ShippingFee: decimal.RequireFromString("5.00"),
		Total:       decimal.RequireFromString("50.00"),
		CreatedAt:   time.Now(),
		Items: []model.OrderItem{
			{
				ProductID: uuid.New(), Quantity: 3,
				UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(30),
				Product: &model.Product{SKU: "TAZA-01", Name: "Taza de ceramica esmaltada con un nombre muy largo"},
			},
			{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(15), LineTotal: decimal.NewFromInt(15)},
		},
	}

	path, err := GeneratePackingSlipPDF(order, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "packing_"+order.ID.String()+".pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}
