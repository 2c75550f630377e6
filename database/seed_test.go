package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"service-marketplace-server/config"
	"service-marketplace-server/database"
	"service-marketplace-server/models"
	"service-marketplace-server/testutil"
)

func TestSeedCatalogOnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	n, err := database.SeedCatalog(ctx, db, zap.NewNop())
	require.NoError(t, err)
	require.Positive(t, n)

	again, err := database.SeedCatalog(ctx, db, zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, again)

	var total int64
	require.NoError(t, db.Model(&models.Service{}).Where("is_active = ?", true).Count(&total).Error)
	require.EqualValues(t, n, total)
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := database.Open(config.DatabaseConfig{}, zap.NewNop())
	require.ErrorContains(t, err, "DB_URL")
}
