package database

import "testing"

func TestRebind(t *testing.T) {
	pg, _ := dialectFor("postgres")
	if got := pg.rebind("SELECT a FROM t WHERE b=? AND c<?"); got != "SELECT a FROM t WHERE b=$1 AND c<$2" {
		t.Errorf("postgres rebind = %q", got)
	}
	my, _ := dialectFor("mysql")
	if got := my.rebind("b=?"); got != "b=?" {
		t.Errorf("mysql rebind = %q", got)
	}
}

func TestUpsert(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{"sqlite3", "INSERT INTO settings(name, value) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET value=excluded.value"},
		{"postgres", "INSERT INTO settings(name, value) VALUES($1,$2) ON CONFLICT(name) DO UPDATE SET value=excluded.value"},
		{"mysql", "INSERT INTO settings(name, value) VALUES(?,?) ON DUPLICATE KEY UPDATE value=VALUES(value)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			d, err := dialectFor(tt.dialect)
			if err != nil {
				t.Fatal(err)
			}
			if got := d.upsert("settings", "name", settingColumns, settingColumns[1:]); got != tt.want {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestUnknownDialect(t *testing.T) {
	if _, err := dialectFor("oracle"); err == nil {
		t.Error("expected error")
	}
}

func TestSqliteDsn(t *testing.T) {
	if got := sqliteDsn("/tmp/x.db"); got != "file:/tmp/x.db?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on" {
		t.Errorf("dsn = %q", got)
	}
	if got := sqliteDsn("file:x.db?cache=shared"); got != "file:x.db?cache=shared" {
		t.Errorf("dsn with options changed: %q", got)
	}
}
