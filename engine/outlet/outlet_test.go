package outlet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/slot"
)

func fixtureOutlets() []catalog.Outlet {
	return []catalog.Outlet{
		{
			Name:    "ZUS Coffee SS2",
			Address: "12 Jalan SS2/61, Petaling Jaya, Selangor",
			Hours: map[string]string{
				"monday": "09:00 - 22:00", "tuesday": "09:00 - 22:00",
				"wednesday": "09:00 - 22:00", "thursday": "09:00 - 22:00",
				"friday": "09:00 - 23:00", "saturday": "08:00 - 23:00",
				"sunday": "08:00 - 22:00",
			},
			Services: []catalog.Service{catalog.ServiceDineIn, catalog.ServiceWifi, catalog.ServiceDriveThru},
		},
		{
			Name:     "ZUS Coffee Mid Valley",
			Address:  "Mid Valley Megamall, Lingkaran Syed Putra, Kuala Lumpur",
			Hours:    map[string]string{"monday": "10:00 - 22:00", "sunday": "10:00 - 22:00"},
			Services: []catalog.Service{catalog.ServiceDineIn, catalog.ServiceDelivery},
		},
		{
			Name:     "ZUS Coffee KLCC",
			Address:  "Suria KLCC, Kuala Lumpur City Centre",
			Hours:    map[string]string{"monday": "8am till late"},
			Services: []catalog.Service{catalog.ServiceTakeaway, catalog.ServiceWifi},
		},
		{
			Name:     "ZUS Coffee Uptown",
			Address:  "Damansara Uptown, Petaling Jaya",
			Hours:    map[string]string{"monday": "07:30 - 21:30"},
			Services: []catalog.Service{catalog.ServiceDineIn, catalog.Service24Hour},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(NewMemoryRegistry(fixtureOutlets()), nil)
}

func TestSearchByCityCountsExactly(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), slot.Slots{Locations: []string{"petaling jaya"}}, DefaultK)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Outlets, 2)
	assert.Equal(t, "ZUS Coffee SS2", res.Outlets[0].Name)
	assert.Equal(t, "ZUS Coffee Uptown", res.Outlets[1].Name)
	assert.Empty(t, res.EmptyAt)
}

func TestSearchCityAliasTokenBoundary(t *testing.T) {
	e := newTestEngine(t)

	// "kl" must not match inside "KLCC" or "Megamall" by substring accident;
	// both KL outlets still resolve through the canonical name.
	res, err := e.Search(context.Background(), slot.Slots{Locations: []string{"kuala lumpur"}}, DefaultK)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestSearchServiceConjunction(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), slot.Slots{
		Locations: []string{"petaling jaya"},
		Services:  []catalog.Service{catalog.ServiceDriveThru},
	}, DefaultK)
	require.NoError(t, err)
	require.Len(t, res.Outlets, 1)
	assert.Equal(t, "ZUS Coffee SS2", res.Outlets[0].Name)
	assert.Equal(t, []string{"area: petaling jaya", "service: drive-thru"}, res.Applied)
}

func TestSearchEmptyNeverWidens(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), slot.Slots{
		Locations: []string{"kuala lumpur"},
		Services:  []catalog.Service{catalog.ServiceDriveThru},
	}, DefaultK)
	require.NoError(t, err)
	assert.Empty(t, res.Outlets)
	assert.Zero(t, res.Total)
	assert.Equal(t, "service", res.EmptyAt)
	assert.Contains(t, res.Applied, "service: drive-thru")
}

func TestSearchLandmark(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), slot.Slots{Landmarks: []string{"mid valley"}}, DefaultK)
	require.NoError(t, err)
	require.Len(t, res.Outlets, 1)
	assert.Equal(t, "ZUS Coffee Mid Valley", res.Outlets[0].Name)
}

func TestSearchUnknownAreaEmpty(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), slot.Slots{Locations: []string{"ipoh"}}, DefaultK)
	require.NoError(t, err)
	assert.Empty(t, res.Outlets)
	assert.Equal(t, "area", res.EmptyAt)
}

func TestSearchClampKeepsTotal(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), slot.Slots{}, 2)
	require.NoError(t, err)
	assert.Len(t, res.Outlets, 2)
	assert.Equal(t, 4, res.Total)
}

func TestNarrowFollowup(t *testing.T) {
	shown := fixtureOutlets()[:2]
	kept := Narrow(shown, slot.Slots{Services: []catalog.Service{catalog.ServiceDelivery}})
	require.Len(t, kept, 1)
	assert.Equal(t, "ZUS Coffee Mid Valley", kept[0].Name)
	// the shown list itself is untouched
	assert.Len(t, shown, 2)
}

func TestHoursAnswer(t *testing.T) {
	outlets := fixtureOutlets()
	ss2 := outlets[0]

	assert.Equal(t, "opens at 9:00 AM", HoursAnswer(ss2, slot.TimeOpening, time.Monday))
	assert.Equal(t, "closes at 11:00 PM", HoursAnswer(ss2, slot.TimeClosing, time.Friday))
	assert.Equal(t, "8:00 AM - 10:00 PM", HoursAnswer(ss2, slot.TimeFullHours, time.Sunday))
}

func TestHoursAnswerVerbatimFallback(t *testing.T) {
	klcc := fixtureOutlets()[2]

	// unparseable hours come back exactly as stored
	assert.Equal(t, "8am till late", HoursAnswer(klcc, slot.TimeOpening, time.Monday))
	assert.Equal(t, "hours not available", HoursAnswer(klcc, slot.TimeOpening, time.Tuesday))
}

func TestCityMatchesAlias(t *testing.T) {
	o := catalog.Outlet{Name: "ZUS Coffee TTDI", Address: "Taman Tun Dr Ismail, KL"}
	assert.True(t, CityMatches(o, "kuala lumpur"))
	assert.False(t, CityMatches(o, "petaling jaya"))
}
