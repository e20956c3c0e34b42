package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/internal/profile"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	p := &profile.Profile{DSN: filepath.Join(t.TempDir(), "outlets.db")}
	db, err := NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedOutlets() []catalog.Outlet {
	return []catalog.Outlet{
		{
			Name:     "ZUS Coffee SS2",
			Address:  "12 Jalan SS2/61, Petaling Jaya, Selangor",
			Hours:    map[string]string{"monday": "09:00 - 22:00"},
			Services: []catalog.Service{catalog.ServiceDineIn, catalog.ServiceWifi},
		},
		{
			Name:     "ZUS Coffee Mid Valley",
			Address:  "Mid Valley Megamall, Kuala Lumpur",
			Hours:    map[string]string{"monday": "10:00 - 22:00"},
			Services: []catalog.Service{catalog.ServiceDineIn},
		},
	}
}

func TestSeedAndAll(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Seed(ctx, seedOutlets()))

	outlets, err := db.All(ctx)
	require.NoError(t, err)
	require.Len(t, outlets, 2)
	assert.Equal(t, "ZUS Coffee SS2", outlets[0].Name)
	assert.Equal(t, "09:00 - 22:00", outlets[0].Hours["monday"])
	assert.Equal(t, []catalog.Service{catalog.ServiceDineIn, catalog.ServiceWifi}, outlets[0].Services)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Seed(ctx, seedOutlets()))
	updated := seedOutlets()
	updated[0].Address = "14 Jalan SS2/61, Petaling Jaya, Selangor"
	require.NoError(t, db.Seed(ctx, updated))

	outlets, err := db.All(ctx)
	require.NoError(t, err)
	require.Len(t, outlets, 2)
	assert.Equal(t, "14 Jalan SS2/61, Petaling Jaya, Selangor", outlets[0].Address)
}

func TestByCity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Seed(ctx, seedOutlets()))

	pj, err := db.ByCity(ctx, "petaling jaya")
	require.NoError(t, err)
	require.Len(t, pj, 1)
	assert.Equal(t, "ZUS Coffee SS2", pj[0].Name)

	kl, err := db.ByCity(ctx, "kuala lumpur")
	require.NoError(t, err)
	require.Len(t, kl, 1)
	assert.Equal(t, "ZUS Coffee Mid Valley", kl[0].Name)

	none, err := db.ByCity(ctx, "ipoh")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestByCityStateLevelArea(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	outlets := append(seedOutlets(), catalog.Outlet{
		Name:     "ZUS Coffee Bangsar",
		Address:  "Jalan Telawi, Bangsar",
		Hours:    map[string]string{"monday": "08:00 - 22:00"},
		Services: []catalog.Service{catalog.ServiceTakeaway},
	})
	require.NoError(t, db.Seed(ctx, outlets))

	// SS2 files under petaling jaya, but its address is in Selangor
	selangor, err := db.ByCity(ctx, "selangor")
	require.NoError(t, err)
	require.Len(t, selangor, 1)
	assert.Equal(t, "ZUS Coffee SS2", selangor[0].Name)

	// Bangsar is a KL area, so the state-level KL query still finds it
	kl, err := db.ByCity(ctx, "kuala lumpur")
	require.NoError(t, err)
	require.Len(t, kl, 2)
	assert.Equal(t, "ZUS Coffee Mid Valley", kl[0].Name)
	assert.Equal(t, "ZUS Coffee Bangsar", kl[1].Name)

	bangsar, err := db.ByCity(ctx, "bangsar")
	require.NoError(t, err)
	require.Len(t, bangsar, 1)
}
