package features

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/gyaneshwarpardhi/fraudscore/internal/errors"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

func TestBuildBatch(t *testing.T) {
	reg := testRegistry(t, Columns(false))
	b := NewBuilder()

	txs := make([]transaction.Transaction, 1000)
	for i := range txs {
		txs[i] = *sampleTx()
		txs[i].UserID = int64(i)
	}
	txs[10].SignupTime = "garbage"
	txs[700].Sex = "X"

	res, err := b.BuildBatch(context.Background(), txs, reg, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.True(t, errors.Is(res.Errs[10], ferrors.ErrParse))
	assert.True(t, errors.Is(res.Errs[700], ferrors.ErrPreprocessing))

	for i, v := range res.Vectors {
		if res.Errs[i] != nil {
			continue
		}
		uid, _ := v.Get(ColUserID)
		assert.Equal(t, float64(i), uid)
	}

	rows, idx := res.Matrix()
	assert.Len(t, rows, 998)
	assert.Len(t, idx, 998)
	assert.NotContains(t, idx, 10)
	assert.NotContains(t, idx, 700)

	single, err := b.Build(context.Background(), &txs[3], reg)
	require.NoError(t, err)
	assert.Equal(t, single.Values, res.Vectors[3].Values)
}

func TestBuildBatch_Cancelled(t *testing.T) {
	reg := testRegistry(t, Columns(false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder().BuildBatch(ctx, []transaction.Transaction{*sampleTx()}, reg, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
