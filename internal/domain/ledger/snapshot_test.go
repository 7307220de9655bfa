package ledger

import (
	"testing"
	"time"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeOne(t *testing.T, record string) *decodedSnapshot {
	t.Helper()
	out, err := decodeSnapshot([]byte("["+record+"]"), loan.Monthly, day("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, out.Borrowers, 1)
	return out
}

func TestMigrateLegacy_PrincipalSources(t *testing.T) {
	t.Run("loan transactions win over flat balance", func(t *testing.T) {
		out := decodeOne(t, `{"id":"b","name":"Ana","balance":999,"terms":"Daily","transactions":[
			{"type":"Loan","amount":500,"date":"2024-02-01"},
			{"type":"Loan","amount":"250","date":"2024-01-20"},
			{"type":"Payment","amount":100,"date":"2024-02-03","notes":"first"}]}`)

		b := out.Borrowers[0]
		require.Len(t, b.Loans, 1)
		l := b.Loans[0]
		assert.True(t, l.Principal.Equal(dec("750")))
		assert.Equal(t, day("2024-01-20"), l.Date)
		assert.Equal(t, loan.Daily, l.Terms)
		assert.True(t, l.InterestRate.IsZero())
		assert.True(t, l.PenaltyRate.IsZero())
		require.Len(t, l.Payments, 1)
		assert.Equal(t, "b-loan-1-payment-1", l.Payments[0].ID)
		assert.Equal(t, "first", l.Payments[0].Notes)
		assert.Equal(t, 1, out.Migrated)
	})

	t.Run("flat balance without loan transactions", func(t *testing.T) {
		out := decodeOne(t, `{"id":"b","name":"Ana","balance":"1200","terms":"Kinsenas","loanDate":"2024-03-01",
			"transactions":[{"type":"Payment","amount":100,"date":"2024-03-05"}]}`)

		l := out.Borrowers[0].Loans[0]
		assert.True(t, l.Principal.Equal(dec("1200")))
		assert.Equal(t, day("2024-03-01"), l.Date)
		assert.Equal(t, loan.Kinsenas, l.Terms)
		assert.Empty(t, l.Payments)
	})

	t.Run("nothing to synthesize", func(t *testing.T) {
		out := decodeOne(t, `{"id":"b","name":"Ana","terms":"Weekly","transactions":[]}`)

		b := out.Borrowers[0]
		assert.NotNil(t, b.Loans)
		assert.Empty(t, b.Loans)
	})
}

func TestMigrateLegacy_OriginFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   time.Time
	}{
		{
			name:   "due date minus one month",
			record: `{"id":"b","name":"A","balance":100,"terms":"Monthly","dueDate":"2024-03-15"}`,
			want:   day("2024-02-15"),
		},
		{
			name:   "due date minus one week",
			record: `{"id":"b","name":"A","balance":100,"terms":"Weekly","dueDate":"2024-03-15"}`,
			want:   day("2024-03-08"),
		},
		{
			name:   "last updated",
			record: `{"id":"b","name":"A","balance":100,"terms":"Weekly","lastUpdated":"2024-04-02T10:00:00.000Z"}`,
			want:   day("2024-04-02"),
		},
		{
			name:   "clock",
			record: `{"id":"b","name":"A","balance":100,"terms":"Weekly"}`,
			want:   day("2024-06-01"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decodeOne(t, tt.record)
			assert.Equal(t, tt.want, out.Borrowers[0].Loans[0].Date)
		})
	}
}

func TestMigrateLegacy_FieldMapping(t *testing.T) {
	out := decodeOne(t, `{"name":" Ana ","phone":"0917","address":"Cebu","age":"thirty","photo":"data:image/png;base64,AA==",
		"terms":"fortnightly","balance":100,"lastUpdated":"2024-04-02T10:00:00.000Z"}`)

	b := out.Borrowers[0]
	assert.Equal(t, "legacy-1", b.ID)
	assert.Equal(t, "Ana", b.Name)
	assert.Equal(t, "0917", b.Mobile)
	assert.Equal(t, "Cebu", b.Address)
	assert.Zero(t, b.Age)
	assert.Equal(t, "data:image/png;base64,AA==", b.Photo)
	assert.Equal(t, day("2024-04-02"), b.UpdatedAt)
	assert.Equal(t, "legacy-1-loan-1", b.Loans[0].ID)
	assert.Equal(t, loan.Monthly, b.Loans[0].Terms)
}

func TestMigrateLegacy_NumericID(t *testing.T) {
	out := decodeOne(t, `{"id":1700000000000,"name":"Ana"}`)
	assert.Equal(t, "1700000000000", out.Borrowers[0].ID)
}

func TestMigration_Idempotent(t *testing.T) {
	legacy := []byte(`[
		{"id":"a","name":"Ana","terms":"Weekly","transactions":[
			{"type":"Loan","amount":1000,"date":"2024-05-01T08:00:00.000Z"},
			{"type":"Payment","amount":300,"date":"2024-05-05T09:30:00.000Z"}]},
		{"name":"Ben","balance":500,"terms":"Daily","dueDate":"2024-05-10"},
		{"id":"c","name":"Carla","loans":[]}
	]`)
	now := day("2024-06-01")

	once, err := decodeSnapshot(legacy, loan.Monthly, now)
	require.NoError(t, err)
	assert.Equal(t, 2, once.Migrated)

	twice, err := decodeSnapshot(legacy, loan.Monthly, now)
	require.NoError(t, err)
	assert.Equal(t, once.Borrowers, twice.Borrowers)

	encoded, err := encodeSnapshot(once.Borrowers, now)
	require.NoError(t, err)
	reapplied, err := decodeSnapshot(encoded, loan.Monthly, now)
	require.NoError(t, err)
	assert.Zero(t, reapplied.Migrated)
	assert.Equal(t, SnapshotVersion, reapplied.Version)

	reencoded, err := encodeSnapshot(reapplied.Borrowers, now)
	require.NoError(t, err)
	assert.JSONEq(t, string(encoded), string(reencoded))
	for i := range once.Borrowers {
		assert.Len(t, reapplied.Borrowers[i].Loans, len(once.Borrowers[i].Loans))
	}
}

func TestDecodeSnapshot_Shapes(t *testing.T) {
	now := day("2024-06-01")

	empty, err := decodeSnapshot([]byte(`{"version":2,"savedAt":"2024-01-01T00:00:00Z","borrowers":[]}`), loan.Monthly, now)
	require.NoError(t, err)
	assert.Empty(t, empty.Borrowers)

	nullLoans, err := decodeSnapshot([]byte(`{"version":2,"borrowers":[{"id":"a","name":"A","loans":null}]}`), loan.Monthly, now)
	require.NoError(t, err)
	assert.NotNil(t, nullLoans.Borrowers[0].Loans)
	assert.Zero(t, nullLoans.Migrated)

	for _, in := range []string{"", "   ", `"text"`, `null`, `[1,2]`, `{"borrowers":{}}`} {
		_, err := decodeSnapshot([]byte(in), loan.Monthly, now)
		assert.ErrorIs(t, err, apperrors.ErrParse, in)
	}
}

func TestEncodeSnapshot_NilBorrowers(t *testing.T) {
	data, err := encodeSnapshot(nil, day("2024-01-01"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"savedAt":"2024-01-01T00:00:00Z","borrowers":[]}`, string(data))
}

func TestDecodeSnapshot_RejectsInvalidFinancialData(t *testing.T) {
	now := day("2024-06-01")
	const loanFields = `"principal":"1000","terms":"Monthly","date":"2024-01-10T00:00:00Z"`

	inputs := map[string]string{
		"blank name":        `{"version":2,"borrowers":[{"id":"b1","name":"  ","loans":[]}]}`,
		"negative age":      `{"version":2,"borrowers":[{"id":"b1","name":"Ana","age":-3,"loans":[]}]}`,
		"null loan":         `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[null]}]}`,
		"negative interest": `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[{"id":"l1",` + loanFields + `,"interestRate":"-50","penaltyRate":"0"}]}]}`,
		"negative penalty":  `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[{"id":"l1",` + loanFields + `,"interestRate":"5","penaltyRate":"-2"}]}]}`,
		"missing date":      `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[{"id":"l1","principal":"1000","terms":"Monthly"}]}]}`,
		"negative payment": `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[{"id":"l1",` + loanFields +
			`,"payments":[{"id":"p1","amount":"-500","date":"2024-01-20T00:00:00Z"}]}]}]}`,
		"zero payment": `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[{"id":"l1",` + loanFields +
			`,"payments":[{"id":"p1","amount":"0","date":"2024-01-20T00:00:00Z"}]}]}]}`,
		"duplicate loan ids": `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[{"id":"l1",` + loanFields +
			`},{"id":"l1",` + loanFields + `}]}]}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			out, err := decodeSnapshot([]byte(in), loan.Monthly, now)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, apperrors.ErrParse)
		})
	}

	t.Run("valid record still decodes", func(t *testing.T) {
		in := `{"version":2,"borrowers":[{"id":"b1","name":"Ana","loans":[{"id":"l1",` + loanFields +
			`,"interestRate":"5","penaltyRate":"2","payments":[{"id":"p1","amount":"500","date":"2024-01-20T00:00:00Z"}]},{"id":"l2",` + loanFields + `}]}]}`
		out, err := decodeSnapshot([]byte(in), loan.Monthly, now)
		require.NoError(t, err)
		require.Len(t, out.Borrowers[0].Loans, 2)
		assert.NotNil(t, out.Borrowers[0].Loans[1].Payments)
	})
}
