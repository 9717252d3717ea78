package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels_AreDistinct(t *testing.T) {
	all := []error{
		ErrorNotFound, ErrorInternal, ErrorInvalidInput, ErrorArchiveConfig,
		ErrUnsupportedArchiveVersion, ErrMalformedArchive, ErrChecksumMismatch,
		ErrProviderMismatch, ErrUnknownTier, ErrTierNotBucketable,
	}
	for i := range all {
		for j := range all {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(all[i], all[j]), "%v must not match %v", all[i], all[j])
		}
	}
}

func TestSentinels_SurviveWrapping(t *testing.T) {
	err := fmt.Errorf("restore a1: %w", ErrChecksumMismatch)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.NotErrorIs(t, err, ErrMalformedArchive)
}
