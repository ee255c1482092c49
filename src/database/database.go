package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/wealthfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateHoldingsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS holdings (
		id TEXT PRIMARY KEY,
		asset_class TEXT NOT NULL,
		merge_key TEXT NOT NULL,
		display_name TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		isin TEXT,
		exchange TEXT,
		institution TEXT,
		interest_rate TEXT,
		maturity_date TEXT,
		buy_date TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(asset_class, merge_key)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		holding_id TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		source TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(holding_id) REFERENCES holdings(id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

func migrateHoldingsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='holdings'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'holdings' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'holdings' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'holdings' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'holdings' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(holdings)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'holdings'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'holdings': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'holdings'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'holdings': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'holdings'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'holdings': %v", err)
		}
		return
	}

	addColumn := func(name, ddl string) {
		if columnExists[name] {
			return
		}
		if _, err := DB.Exec("ALTER TABLE holdings ADD COLUMN " + ddl); err != nil {
			logger.L.Error("Error adding column to 'holdings' table", "column", name, "error", err)
		} else {
			logger.L.Info("Added column to 'holdings' table", "column", name)
		}
	}

	addColumn("institution", "institution TEXT")
	addColumn("interest_rate", "interest_rate TEXT")
	addColumn("maturity_date", "maturity_date TEXT")
	addColumn("buy_date", "buy_date TEXT")
}
