package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotal(t *testing.T) {
	items := []LineItem{
		{ProductID: 7, Price: decimal.RequireFromString("20.00"), Quantity: 2},
		{ProductID: 8, Price: decimal.RequireFromString("0.10"), Quantity: 3},
	}
	assert.True(t, decimal.RequireFromString("40.30").Equal(Total(items)))
}

func TestTotal_Empty(t *testing.T) {
	assert.True(t, Total(nil).IsZero())
}

func TestProduct_LineItem(t *testing.T) {
	p := Product{ID: 7, Title: "Shirt", Price: decimal.NewFromInt(20), Image: "shirt.png"}
	item := p.LineItem(1)
	assert.Equal(t, int64(7), item.ProductID)
	assert.Equal(t, "Shirt", item.Title)
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, decimal.NewFromInt(20).Equal(item.Subtotal()))
}

func TestSyncState_String(t *testing.T) {
	assert.Equal(t, "unsubscribed", StateUnsubscribed.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "synced", StateSynced.String())
}
