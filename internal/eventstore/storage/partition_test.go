package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteLiteralFormatsAsDateLiteral(t *testing.T) {
	ts := time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "'2026-03-05'", quoteLiteral(ts))
}

func TestParsePartitionDateRoundTripsEnsurePartitionNaming(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	name := "events_p20260115"

	parsed, ok := parsePartitionDate(name)
	assert.True(t, ok)
	assert.True(t, start.Equal(parsed))
}

func TestParsePartitionDateRejectsUnrelatedNames(t *testing.T) {
	_, ok := parsePartitionDate("event_snapshots")
	assert.False(t, ok)

	_, ok = parsePartitionDate("events_pNOTADATE")
	assert.False(t, ok)

	_, ok = parsePartitionDate("events_p202601")
	assert.False(t, ok)
}
