package service

import (
	"testing"
	"time"

	"remediation-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProjection_PrependsRoomLabel(t *testing.T) {
	rooms := []domain.Room{
		{ID: "r1", Title: "Kitchen", Measurements: []domain.Measurement{domain.NewEquipmentMeasurement("e1", "Kitchen", 2)}},
		{ID: "r2", Title: "Garage"},
	}

	out := BuildProjection(rooms)
	require.Len(t, out, 2)

	require.Len(t, out[0].Measurements, 2)
	label := out[0].Measurements[0]
	assert.Equal(t, "r1-label", label.ID)
	assert.Equal(t, domain.KindRoomLabel, label.Kind)
	assert.True(t, label.IsRoomName)
	assert.True(t, label.Tax)
	assert.Equal(t, "Kitchen", label.Name)
	assert.Equal(t, "e1", out[0].Measurements[1].ID)

	require.Len(t, out[1].Measurements, 1)
	assert.NotNil(t, out[1].Photos)

	// 入参不变
	assert.Len(t, rooms[0].Measurements, 1)
}

func TestBuildRemediationUpdate(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	rooms := []domain.Room{{ID: "r1", Title: "Kitchen"}}

	cases := []struct {
		current  domain.RemediationStatus
		complete bool
		want     domain.RemediationStatus
	}{
		{domain.StatusNotStarted, false, domain.StatusInProgress},
		{domain.StatusNotStarted, true, domain.StatusComplete},
		{domain.StatusInProgress, false, domain.StatusInProgress},
		{domain.StatusInProgress, true, domain.StatusComplete},
		{domain.StatusComplete, false, domain.StatusComplete},
	}
	for _, tc := range cases {
		u := BuildRemediationUpdate(rooms, tc.current, tc.complete, now)
		assert.Equal(t, tc.want, u.Status, "%s complete=%v", tc.current, tc.complete)
		assert.False(t, u.Required)
		assert.Equal(t, time.UTC, u.Data.UpdatedAt.Location())
		assert.True(t, now.Equal(u.Data.UpdatedAt))
	}
}

func TestCheckPhotos(t *testing.T) {
	withPhoto := domain.Room{ID: "r1", Title: "Kitchen", Photos: []domain.Photo{{StoragePath: "a"}}}
	assert.NoError(t, CheckPhotos([]domain.Room{withPhoto}))
	assert.NoError(t, CheckPhotos(nil))

	err := CheckPhotos([]domain.Room{withPhoto, {ID: "r2", Title: "Garage"}, {ID: "r3", Title: "Attic", Photos: []domain.Photo{}}})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Garage", "Attic"}, verr.Rooms)
	assert.Contains(t, err.Error(), "Garage, Attic")
}

func TestRoomInvariantViolations(t *testing.T) {
	ok := domain.Room{NumberOfFans: 2, Measurements: []domain.Measurement{domain.NewEquipmentMeasurement("e", "", 2)}}
	assert.Empty(t, RoomInvariantViolations(ok))

	assert.NotEmpty(t, RoomInvariantViolations(domain.Room{NumberOfFans: 2}))
	assert.NotEmpty(t, RoomInvariantViolations(domain.Room{NumberOfFans: 1, Measurements: []domain.Measurement{domain.NewEquipmentMeasurement("e", "", 2)}}))
	assert.NotEmpty(t, RoomInvariantViolations(domain.Room{Measurements: []domain.Measurement{domain.NewRoomLabel("l", "x")}}))
	assert.NotEmpty(t, RoomInvariantViolations(domain.Room{NumberOfFans: 21}))
}

func TestAuditPersistedRooms(t *testing.T) {
	good := BuildProjection([]domain.Room{{
		ID: "r1", Title: "Kitchen", NumberOfFans: 1,
		Measurements: []domain.Measurement{domain.NewEquipmentMeasurement("e1", "Kitchen", 1)},
		Photos:       []domain.Photo{{StoragePath: "a.jpg"}},
	}})
	assert.Empty(t, AuditPersistedRooms(good))

	bad := []domain.Room{
		{ID: "r2", Title: "Garage", NumberOfFans: 2, Measurements: []domain.Measurement{domain.NewEquipmentMeasurement("e2", "Garage", 1)}},
	}
	findings := AuditPersistedRooms(bad)
	require.Len(t, findings, 1)
	assert.Equal(t, "Garage", findings[0].RoomTitle)
	assert.Contains(t, findings[0].Violations, "no photos")
	assert.Contains(t, findings[0].Violations, "0 room label lines, expected 1")
	assert.Len(t, findings[0].Violations, 3)
}
