package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type stubTx struct {
	pgx.Tx
}

func TestWithTxJoinsOpenTransaction(t *testing.T) {
	outer := &stubTx{}
	ctx := ContextWithTx(context.Background(), outer)

	// A nil pool proves the join path: beginning would dereference it.
	var got pgx.Tx
	err := WithTx(ctx, nil, func(ctx context.Context, tx pgx.Tx) error {
		got = tx
		return nil
	})
	require.NoError(t, err)
	require.Same(t, outer, got)
}

func TestWithTxJoinLeavesOutcomeToOutermost(t *testing.T) {
	outer := &stubTx{}
	ctx := ContextWithTx(context.Background(), outer)

	boom := errors.New("inner failure")
	err := WithTx(ctx, nil, func(ctx context.Context, tx pgx.Tx) error {
		return boom
	})
	// No commit or rollback wrapping on the join path; the error passes
	// through for the outermost caller to act on.
	require.Same(t, boom, err)
}

func TestExecutorFromPrefersOpenTransaction(t *testing.T) {
	outer := &stubTx{}
	ctx := ContextWithTx(context.Background(), outer)
	require.Same(t, outer, ExecutorFrom(ctx, nil))

	require.Nil(t, TxFromContext(context.Background()))
}
