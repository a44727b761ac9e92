package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestErrorPredicatesSeeWrapped(t *testing.T) {
	v := fmt.Errorf("outer: %w", Validation("add line", "quantity", "must be greater than 0, got %d", 0))
	assert.True(t, IsValidation(v))
	assert.False(t, IsRetryable(v))

	nf := NotFound("add line", "item", int64(7))
	assert.True(t, IsNotFound(nf))
	assert.True(t, IsValidation(nf), "a missing reference rejects the request")
	assert.False(t, IsNotFound(v))
	assert.Contains(t, nf.Error(), "item 7 does not exist")

	cause := errors.New("database is locked")
	c := fmt.Errorf("tx: %w", Conflict("add line", "concurrent update", cause))
	assert.True(t, IsConflict(c))
	assert.True(t, IsRetryable(c))
	assert.ErrorIs(t, c, cause)

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestErrorString(t *testing.T) {
	err := Validation("update item", "unit_price", "must not be negative, got %s", "-1")
	assert.Equal(t, "update item: VALIDATION (unit_price): must not be negative, got -1", err.Error())
}

func TestValidators(t *testing.T) {
	assert.Error(t, ValidateLineQuantity("op", 0))
	assert.Error(t, ValidateLineQuantity("op", -3))
	assert.NoError(t, ValidateLineQuantity("op", 1))

	assert.Error(t, ValidateStockQuantity("op", "quantity", -1))
	assert.NoError(t, ValidateStockQuantity("op", "quantity", 0))

	assert.Error(t, ValidatePrice("op", "price", decimal.NewFromInt(-1)))
	assert.NoError(t, ValidatePrice("op", "price", decimal.Zero))

	assert.Error(t, ValidateName("op", "name", "   "))
	assert.Equal(t, "caf\u00e9", NormalizeName("  cafe\u0301 "))
}

func TestParseMoney(t *testing.T) {
	d, err := ParseMoney("op", "price", " 20.00 ")
	assert.NoError(t, err)
	assert.Equal(t, "20.00", FormatMoney(d))

	_, err = ParseMoney("op", "price", "twenty")
	assert.True(t, IsValidation(err))
}

func TestSignedDeltaHelpers(t *testing.T) {
	assert.Equal(t, int64(1), KindPurchase.Sign())
	assert.Equal(t, int64(-1), KindSales.Sign())
	assert.Equal(t, CounterpartySupplier, KindPurchase.CounterpartyKind())
	assert.Equal(t, CounterpartyCustomer, KindSales.CounterpartyKind())
	assert.False(t, DocumentKind("refund").Valid())

	line := LineEntry{Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")}
	assert.True(t, decimal.RequireFromString("40").Equal(line.LineValue()))
}
