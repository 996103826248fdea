package sqlstore

import (
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

var testStore *SQLStore

func SetupTestDB(t *testing.T) {
	var err error
	testStore, err = New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pool connection would otherwise get its own :memory: database.
	testStore.db.SetMaxOpenConns(1)
}

func TeardownTestDB() {
	testStore.db.Close()
}
