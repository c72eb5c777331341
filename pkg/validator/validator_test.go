package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addItem struct {
	ProductID int `json:"product_id" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gte=1,lte=99"`
}

type bundle struct {
	ProductIDs []int `json:"product_ids" validate:"required,min=1,max=3,dive,gt=0"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(addItem{ProductID: 1, Quantity: 2}))
	assert.NoError(t, Validate(bundle{ProductIDs: []int{1, 2}}))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	fields := fieldsOf(t, Validate(addItem{}))

	assert.Equal(t, "is required", fields["product_id"])
	assert.Equal(t, "is required", fields["quantity"])
	assert.NotContains(t, fields, "ProductID")
}

func TestValidate_Range(t *testing.T) {
	fields := fieldsOf(t, Validate(addItem{ProductID: 1, Quantity: 100}))
	assert.Equal(t, "must be less than or equal to 99", fields["quantity"])
}

func TestValidate_SliceBounds(t *testing.T) {
	fields := fieldsOf(t, Validate(bundle{ProductIDs: []int{}}))
	assert.Equal(t, "must contain at least 1 item(s)", fields["product_ids"])

	fields = fieldsOf(t, Validate(bundle{ProductIDs: []int{1, 2, 3, 4}}))
	assert.Equal(t, "must contain at most 3 item(s)", fields["product_ids"])
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(addItem{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'product_id' is required")
	assert.Contains(t, err.Error(), "; ")
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"product_id":3,"quantity":1}`, ""},
		{"malformed", `{"product_id":`, "decode request body"},
		{"unknown field", `{"product_id":3,"quantity":1,"price":9}`, "decode request body"},
		{"invalid", `{"product_id":3,"quantity":0}`, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(tt.body))
			var dst addItem
			err := DecodeAndValidate(req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 3, dst.ProductID)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
