package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestMongo(t *testing.T, transactions bool) *MongoStore {
	t.Helper()
	uri := strings.TrimSpace(os.Getenv("TASKBOARD_TEST_MONGO_URL"))
	if uri == "" {
		t.Skip("TASKBOARD_TEST_MONGO_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database := "taskboard_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	s, err := OpenMongo(ctx, uri, database, transactions)
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestMongoStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return openTestMongo(t, false) })
}

// Transactions need a replica set; the suite only runs where one is configured.
func TestMongoStoreTransactions(t *testing.T) {
	if os.Getenv("TASKBOARD_TEST_MONGO_REPLSET") == "" {
		t.Skip("TASKBOARD_TEST_MONGO_REPLSET is not set")
	}
	runTxContract(t, func(t *testing.T) Store { return openTestMongo(t, true) })
}
