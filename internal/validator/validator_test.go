package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

func validPayload() models.EventPayload {
	return models.EventPayload{
		EventID:      "evt-1001",
		Time:         "2025-06-01T10:30:00Z",
		ComputerName: "PC1",
		UserName:     "alice",
		EventType:    "login",
		IPAddress:    "10.0.0.5",
		Status:       "success",
	}
}

func TestValidateBatch_Valid(t *testing.T) {
	events, err := ValidateBatch([]models.EventPayload{validPayload()})
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "evt-1001", events[0].EventID)
	assert.Equal(t, "PC1", events[0].ComputerName)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC), events[0].Time)
	assert.False(t, events[0].IsFailure())
}

func TestValidateBatch_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.EventPayload)
		field  string
	}{
		{"missing event_id", func(p *models.EventPayload) { p.EventID = "" }, "event_id"},
		{"missing time", func(p *models.EventPayload) { p.Time = "" }, "time"},
		{"missing computer_name", func(p *models.EventPayload) { p.ComputerName = "" }, "computer_name"},
		{"missing user_name", func(p *models.EventPayload) { p.UserName = "" }, "user_name"},
		{"missing event_type", func(p *models.EventPayload) { p.EventType = "" }, "event_type"},
		{"missing ip_address", func(p *models.EventPayload) { p.IPAddress = "" }, "ip_address"},
		{"missing status", func(p *models.EventPayload) { p.Status = "" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(&p)

			_, err := ValidateBatch([]models.EventPayload{p})
			require.Error(t, err)

			var verr *Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, 0, verr.Index)
		})
	}
}

func TestValidateBatch_BadTimestamp(t *testing.T) {
	p := validPayload()
	p.Time = "yesterday at noon"

	_, err := ValidateBatch([]models.EventPayload{p})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "time", verr.Field)
}

func TestValidateBatch_ReportsFailingIndex(t *testing.T) {
	bad := validPayload()
	bad.UserName = ""

	_, err := ValidateBatch([]models.EventPayload{validPayload(), validPayload(), bad})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 2, verr.Index)
}

func TestValidateBatch_Empty(t *testing.T) {
	events, err := ValidateBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}
