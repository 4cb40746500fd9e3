package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifySentinels(t *testing.T) {
	assert.Equal(t, KindPermanent, Classify(ErrNotFound))
	assert.Equal(t, KindConflict, Classify(ErrVersionConflict))
	assert.Equal(t, KindValidation, Classify(Validation("adult count out of range")))
}

func TestClassifyWrapped(t *testing.T) {
	err := fmt.Errorf("saving table 4: %w", ErrVersionConflict)
	assert.Equal(t, KindConflict, Classify(err))

	err = Wrap(KindTransient, "publish change event", errors.New("boom"))
	assert.Equal(t, KindTransient, Classify(err))
}

func TestClassifyPostgresCodes(t *testing.T) {
	cases := []struct {
		code string
		want Kind
	}{
		{"53300", KindTransient}, // too_many_connections
		{"57P01", KindTransient}, // admin_shutdown
		{"08006", KindTransient}, // connection_failure
		{"40001", KindConflict},  // serialization_failure
		{"42501", KindPermanent}, // insufficient_privilege
		{"23505", KindUnknown},   // unique_violation, not ours to retry
	}
	for _, c := range cases {
		err := fmt.Errorf("query: %w", &pgconn.PgError{Code: c.code})
		assert.Equal(t, c.want, Classify(err), "SQLSTATE %s", c.code)
	}
}

func TestClassifyNetworkPatterns(t *testing.T) {
	assert.Equal(t, KindTransient, Classify(errors.New("dial tcp 10.0.0.2:5432: connection refused")))
	assert.Equal(t, KindTransient, Classify(context.DeadlineExceeded))
	assert.Equal(t, KindPermanent, Classify(context.Canceled))
	assert.Equal(t, KindUnknown, Classify(errors.New("something else entirely")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrVersionConflict))
	assert.True(t, IsRetryable(errors.New("broken pipe")))
	assert.False(t, IsRetryable(Validation("bad input")))
	assert.False(t, IsRetryable(ErrNoActor))
}
