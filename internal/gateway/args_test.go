package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umucyo/guarantee-gateway/internal/operations"
)

func resolve(t *testing.T, name string) operations.Operation {
	t.Helper()
	registry, err := operations.Default()
	require.NoError(t, err)
	op, ok := registry.Resolve(name)
	require.True(t, ok)
	return op
}

func TestBuildRequestScalarsAndAliases(t *testing.T) {
	op := resolve(t, "getTenderInformation")
	req, err := buildRequest(op, map[string]any{
		"ref_name":        "Road works",
		"tenderRefNumber": json.Number("2024"),
		"password":        "caller-supplied",
	}, creds)
	require.NoError(t, err)

	assert.Equal(t, "getTenderInformation", req.Operation)
	assert.Equal(t, map[string]any{
		"tenderInfoRequest": map[string]any{
			"id":              "UAP",
			"password":        "s3cret",
			"tenderRefName":   "Road works",
			"tenderRefNumber": json.Number("2024"),
		},
	}, req.Args)
	assert.Equal(t, []string{
		"tenderInfoRequest__id",
		"tenderInfoRequest__password",
		"tenderInfoRequest__tenderRefName",
		"tenderInfoRequest__tenderRefNumber",
	}, req.Order)
}

func TestBuildRequestRejectsMissingOrNonScalar(t *testing.T) {
	op := resolve(t, "getContractInformation")

	_, err := buildRequest(op, map[string]any{"contractNumber": "C-1"}, creds)
	require.ErrorIs(t, err, ErrInvalidArguments)
	assert.Contains(t, err.Error(), "contractSerialNumber")

	_, err = buildRequest(op, map[string]any{"contractNumber": "  ", "contractSerialNumber": "S"}, creds)
	require.ErrorIs(t, err, ErrInvalidArguments)

	_, err = buildRequest(op, map[string]any{"contractNumber": map[string]any{"x": 1}, "contractSerialNumber": "S"}, creds)
	require.ErrorIs(t, err, ErrInvalidArguments)
}

func TestBuildRequestStructuredFromNestedObject(t *testing.T) {
	op := resolve(t, "sendBidSecurityInformation")
	req, err := buildRequest(op, map[string]any{
		"bid_info": map[string]any{
			"tenderNotificationInfo": map[string]any{"tenderRefNumber": "T-1"},
			"bidSecurityInfo":        map[string]any{"amount": json.Number("1500000")},
			"bidSecurityInfo__unit":  "RWF",
			"notInSchema":            "dropped",
			"password":               "ignored",
		},
	}, creds)
	require.NoError(t, err)

	wrapper := req.Args["bidSecurityInfoRequest"].(map[string]any)
	assert.Equal(t, map[string]any{"tenderRefNumber": "T-1"}, wrapper["tenderNotificationInfo"])
	assert.Equal(t, map[string]any{"amount": json.Number("1500000"), "unit": "RWF"}, wrapper["bidSecurityInfo"])
	assert.NotContains(t, wrapper, "notInSchema")
	assert.Equal(t, "s3cret", wrapper["password"])
	assert.Equal(t, "bidSecurityInfoRequest__id", req.Order[0])
}

func TestBuildRequestStructuredFromTopLevelKeys(t *testing.T) {
	op := resolve(t, "sendPerformSecurityInformation")
	req, err := buildRequest(op, map[string]any{
		"contractInfo__lotInfo__lotName":   "Lot A",
		"contractInfo__lotInfo__lotNumber": "1",
		"contractInfo__lotInfo__missing":   nil,
	}, creds)
	require.NoError(t, err)

	wrapper := req.Args["performanceSecurityInfoRequest"].(map[string]any)
	assert.Equal(t, map[string]any{
		"lotInfo": map[string]any{"lotName": "Lot A", "lotNumber": "1"},
	}, wrapper["contractInfo"])
}

func TestBuildRequestStructuredRequiresSomething(t *testing.T) {
	op := resolve(t, "sendCreditLineFacility")

	_, err := buildRequest(op, map[string]any{"credit_info": map[string]any{"unknown": "x"}}, creds)
	require.ErrorIs(t, err, ErrInvalidArguments)

	_, err = buildRequest(op, map[string]any{"credit_info": "flat string"}, creds)
	require.ErrorIs(t, err, ErrInvalidArguments)

	_, err = buildRequest(op, map[string]any{"credit_info": map[string]any{"tenderRefName": []any{"a"}}}, creds)
	require.ErrorIs(t, err, ErrInvalidArguments)
}
