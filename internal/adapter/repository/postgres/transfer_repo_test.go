package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanTransfer(t *testing.T) {
	now := time.Now()
	row := fakeRow{values: []any{
		"s-1", "12345", "85-150", "43-812", "250.00",
		"COMPENSATED_FAILURE", "", "R-1", "deposit failed: invalid account", false,
		now, now,
	}}

	record, err := scanTransfer(row)
	require.NoError(t, err)
	assert.Equal(t, "s-1", record.Request.SessionID)
	assert.True(t, record.Request.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, domain.CompensatedFailure("R-1", "deposit failed: invalid account"), record.Outcome)
	assert.Equal(t, now, record.CreatedAt)
}

func TestScanTransfer_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := scanTransfer(fakeRow{err: boom})
	assert.ErrorIs(t, err, boom)

	now := time.Now()
	_, err = scanTransfer(fakeRow{values: []any{
		"s-1", "12345", "85-150", "43-812", "not-a-number",
		"COMPLETED", "D-1", "", "", false, now, now,
	}})
	assert.ErrorContains(t, err, "failed to parse amount")
}
