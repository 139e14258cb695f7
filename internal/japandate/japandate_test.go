package japandate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssuedOnReiwa(t *testing.T) {
	assert.Equal(t, "令和8年8月", IssuedOn(time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "令和7年12月", IssuedOn(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIssuedOnFirstYearIsGan(t *testing.T) {
	assert.Equal(t, "令和元年5月", IssuedOn(time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "令和元年12月", IssuedOn(time.Date(2019, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestIssuedOnHeiseiBeforeReiwa(t *testing.T) {
	assert.Equal(t, "平成31年4月", IssuedOn(time.Date(2019, time.April, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "平成元年1月", IssuedOn(time.Date(1989, time.January, 8, 0, 0, 0, 0, time.UTC)))
}

func TestNowIsNonEmpty(t *testing.T) {
	assert.NotEmpty(t, Now())
}
