//go:build integration
// +build integration

package rules_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/liamcoop/ruleweave/migrations"
	"github.com/liamcoop/ruleweave/rules"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container and applies the embedded migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "ruleweave_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=ruleweave_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if _, err := migrations.Up(connStr); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}
	return db, cleanup
}

// setupTestRedis starts a Redis container and returns a connected storage client
func setupTestRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), func() { container.Terminate(ctx) }
}

// exerciseStore runs the versioning lifecycle against any storage backend
func exerciseStore(t *testing.T, storage rules.Storage) {
	ctx := context.Background()
	store := rules.NewBlobRuleStore(storage)

	saved, err := store.Save(ctx, rules.RuleInput{
		Name:            "High value",
		NaturalLanguage: "Flag transactions over $1000",
		RuleCode:        "if transaction.amount > 1000 then flag_transaction",
	})
	if err != nil {
		t.Fatalf("Failed to save rule: %v", err)
	}

	updated, err := store.Save(ctx, rules.RuleInput{
		ID:       saved.ID,
		Name:     "High value",
		RuleCode: "if transaction.amount > 5000 then flag_transaction",
	})
	if err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}
	if len(updated.Versions) != 2 {
		t.Errorf("Expected 2 versions, got %d", len(updated.Versions))
	}

	reverted, err := store.Revert(ctx, saved.ID, 0)
	if err != nil {
		t.Fatalf("Failed to revert rule: %v", err)
	}
	if reverted.RuleCode != saved.RuleCode {
		t.Errorf("Expected reverted code %q, got %q", saved.RuleCode, reverted.RuleCode)
	}

	// A fresh store over the same backend sees the persisted history
	fresh := rules.NewBlobRuleStore(storage)
	got, err := fresh.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Failed to get rule from fresh store: %v", err)
	}
	if len(got.Versions) != 3 || !got.Versions[2].IsReversion {
		t.Errorf("Expected 3 versions ending in a reversion, got %+v", got.Versions)
	}

	if err := store.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Failed to delete rule: %v", err)
	}
	if _, err := store.Get(ctx, saved.ID); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound after delete, got %v", err)
	}
}

func TestPostgresStorage_Lifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	exerciseStore(t, rules.NewPostgresStorage(db, ""))
}

func TestPostgresStorage_KeyIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	storeA := rules.NewBlobRuleStore(rules.NewPostgresStorage(db, "workspace-a"))
	storeB := rules.NewBlobRuleStore(rules.NewPostgresStorage(db, "workspace-b"))

	if _, err := storeA.Save(ctx, rules.RuleInput{Name: "A", RuleCode: "if a then b"}); err != nil {
		t.Fatalf("Failed to save rule: %v", err)
	}

	listB, err := storeB.ListAll(ctx)
	if err != nil {
		t.Fatalf("Failed to list rules: %v", err)
	}
	if len(listB) != 0 {
		t.Errorf("Expected workspace-b to be empty, got %d rules", len(listB))
	}
}

func TestRedisStorage_Lifecycle(t *testing.T) {
	addr, cleanup := setupTestRedis(t)
	defer cleanup()

	client, err := rules.NewRedisClient(context.Background(), addr, "", 0)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	defer client.Close()

	exerciseStore(t, rules.NewRedisStorage(client, ""))
}
