package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatch-board/internal/pkg/errors"
)

func datePtr(s string) *Date {
	d := MustDate(s)
	return &d
}

func newTransport(dates ...string) *Transport {
	t := &Transport{ID: 1, Reference: "TR-1", Type: TransportImport, Lifecycle: NewLifecycle()}
	for i, d := range dates {
		t.Destinations = append(t.Destinations, Destination{Order: i + 1, LocationRef: "LOC", Date: MustDate(d)})
	}
	return t
}

func TestTransport_RequiresGenset(t *testing.T) {
	tests := []struct {
		subtype string
		want    bool
	}{
		{"40RF", true},
		{"45rh", true},
		{"45R1", true},
		{"REEFER", true},
		{"40HC", false},
		{"22G1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.subtype, func(t *testing.T) {
			tr := &Transport{ContainerSubtype: tt.subtype}
			assert.Equal(t, tt.want, tr.RequiresGenset())
		})
	}
}

func TestTransport_PlanningDates(t *testing.T) {
	tr := newTransport("2024-06-03", "2024-06-01")
	assert.Equal(t, []Date{"2024-06-01", "2024-06-03"}, tr.PlanningDates())

	tr.DepartureDate = datePtr("2024-06-01")
	tr.ReturnDate = datePtr("2024-06-04")
	assert.Equal(t, []Date{"2024-06-01", "2024-06-02", "2024-06-03", "2024-06-04"}, tr.PlanningDates())
	assert.Equal(t, []Date{"2024-06-01", "2024-06-03", "2024-06-04"}, tr.TouchedDates())
}

func TestTransport_RestoreDateJoinsPlanning(t *testing.T) {
	tr := newTransport("2024-06-01")
	var err error
	tr.Lifecycle, err = tr.Lifecycle.CutOff(CutInfo{Type: CutContainer, CutDate: MustDate("2024-06-01"), LocationText: "Port"})
	require.NoError(t, err)
	assert.Equal(t, []Date{"2024-06-01"}, tr.PlanningDates())

	tr.Lifecycle, err = tr.Lifecycle.Restore(MustDate("2024-06-09"))
	require.NoError(t, err)
	assert.True(t, tr.HasPlanningDate(MustDate("2024-06-09")))
	assert.True(t, tr.TouchesDate(MustDate("2024-06-09")))
}

func TestTransport_ValidateDestinations(t *testing.T) {
	tr := newTransport("2024-06-01", "2024-06-02")
	assert.NoError(t, tr.ValidateDestinations())

	tr.Destinations[1].Date = MustDate("2024-05-30")
	err := tr.ValidateDestinations()
	assert.Equal(t, errors.KindSequenceViolation, errors.KindOf(err))
	assert.Equal(t, errors.CodeDestinationOrder, errors.CodeOf(err))

	dup := newTransport("2024-06-01", "2024-06-02")
	dup.Destinations[1].Order = 1
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(dup.ValidateDestinations()))

	window := newTransport("2024-06-01")
	window.DepartureDate = datePtr("2024-06-05")
	window.ReturnDate = datePtr("2024-06-04")
	assert.Equal(t, errors.CodePlanWindowOrder, errors.CodeOf(window.ValidateDestinations()))
}

func TestTransport_SetETAChain(t *testing.T) {
	tr := newTransport("2024-06-01", "2024-06-01", "2024-06-02")
	eta := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	err := tr.SetETA(2, &eta)
	assert.Equal(t, errors.CodeETAChain, errors.CodeOf(err))

	require.NoError(t, tr.SetETA(1, &eta))
	require.NoError(t, tr.SetETA(2, &eta))
	assert.True(t, tr.ETAChainValid())

	err = tr.SetETA(1, nil)
	assert.Equal(t, errors.CodeETASuccessorSet, errors.CodeOf(err))

	require.NoError(t, tr.SetETA(2, nil))
	require.NoError(t, tr.SetETA(1, nil))
	assert.True(t, tr.ETAChainValid())

	assert.Equal(t, errors.KindNotFound, errors.KindOf(tr.SetETA(9, &eta)))
}

func TestTransport_ApplyPlanIsAtomic(t *testing.T) {
	tr := newTransport("2024-06-01", "2024-06-02")

	err := tr.ApplyPlan(DatePlan{Destinations: []DestinationDate{
		{Order: 1, Date: MustDate("2024-06-10")},
	}})
	assert.Equal(t, errors.KindSequenceViolation, errors.KindOf(err))
	assert.Equal(t, MustDate("2024-06-01"), tr.Destinations[0].Date)

	require.NoError(t, tr.ApplyPlan(DatePlan{Destinations: []DestinationDate{
		{Order: 1, Date: MustDate("2024-06-10")},
		{Order: 2, Date: MustDate("2024-06-11")},
	}}))
	assert.Equal(t, []Date{"2024-06-10", "2024-06-11"}, tr.PlanningDates())
}

func TestTransport_CloneIsDeep(t *testing.T) {
	tr := newTransport("2024-06-01")
	trailer := int64(7)
	tr.TrailerID = &trailer
	eta := time.Now()
	tr.Destinations[0].ETA = &eta

	cp := tr.Clone()
	*cp.TrailerID = 8
	cp.Destinations[0].Date = MustDate("2024-07-01")
	cp.Destinations[0].ETA = nil

	assert.Equal(t, int64(7), *tr.TrailerID)
	assert.Equal(t, MustDate("2024-06-01"), tr.Destinations[0].Date)
	assert.NotNil(t, tr.Destinations[0].ETA)
}

func TestTransport_JSONKeepsExplicitNulls(t *testing.T) {
	data, err := json.Marshal(newTransport("2024-06-01"))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "null", string(raw["trailer_id"]))
	assert.Equal(t, "null", string(raw["departure_date"]))
}
