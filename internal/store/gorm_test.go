package store

import (
	"strings"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// dryRunDB builds statements against the MySQL dialect without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "agentmesh:agentmesh@tcp(127.0.0.1:3306)/agentmesh?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db
}

func TestGormSeedCounterKeepsExistingRow(t *testing.T) {
	g := NewGormStore(dryRunDB(t))

	stmt := g.seedCounter(g.db, "stats:handshakes").Statement
	sql := stmt.SQL.String()

	if !strings.HasPrefix(sql, "INSERT INTO `kv_entries`") {
		t.Errorf("Expected an insert into kv_entries, got %q", sql)
	}
	if !strings.Contains(sql, "ON DUPLICATE KEY UPDATE `kv_key`=`kv_key`") {
		t.Errorf("seed must not overwrite an existing counter, got %q", sql)
	}
	if len(stmt.Vars) == 0 || stmt.Vars[0] != "stats:handshakes" {
		t.Errorf("Expected key as first bind var, got %v", stmt.Vars)
	}
}
