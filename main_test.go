package main

import (
	"context"
	"testing"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDatabaseSQLite(t *testing.T) {
	db, err := openDatabase(config.Database{Driver: "sqlite", DSN: "file:main_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))

	_, err = openDatabase(config.Database{Driver: "mysql"})
	assert.Error(t, err)
}

func TestSeedProductsOnlyFillsEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryStore().Repositories().Products

	seedProducts(ctx, repo)
	products, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	require.NoError(t, repo.Update(ctx, &models.Product{ID: "prod-2", Name: "Keyboard", Price: decimal.NewFromInt(80), Stock: 1}))
	seedProducts(ctx, repo)
	products, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestNewPublisherWithoutBroker(t *testing.T) {
	publisher, client, err := newPublisher(config.Events{Broker: config.BrokerNone})
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.IsType(t, events.NopPublisher{}, publisher)

	_, _, err = newPublisher(config.Events{Broker: config.BrokerKafka})
	assert.Error(t, err)
}

func TestAuditEvent(t *testing.T) {
	assert.NoError(t, auditEvent(amqp.Delivery{Body: []byte(`{"type":"order.created","order_id":"o-1","status":"PENDING"}`)}))
	assert.Error(t, auditEvent(amqp.Delivery{Body: []byte(`not json`)}))
	assert.Error(t, auditEvent(amqp.Delivery{Body: []byte(`{"status":"PENDING"}`)}))
}
