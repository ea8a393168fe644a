package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"storekpi/internal"
)

// LastRunKey is the metadata key holding the run id of the latest save.
const LastRunKey = "last_run_id"

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS stores (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT,
  regional TEXT NOT NULL,
  store_name TEXT NOT NULL,
  year INTEGER,
  month INTEGER,
  extraction_type TEXT,
  extraction_method TEXT,
  extraction_datetime TEXT,
  error_message TEXT NOT NULL DEFAULT 'None',
  fields_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stores_run ON stores(run_id);
CREATE INDEX IF NOT EXISTS idx_stores_name ON stores(regional, store_name);

CREATE TABLE IF NOT EXISTS scores (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  store_id INTEGER NOT NULL,
  score_type TEXT NOT NULL,
  score_value REAL NOT NULL,
  FOREIGN KEY(store_id) REFERENCES stores(id)
);

CREATE TABLE IF NOT EXISTS kpis (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  store_id INTEGER NOT NULL,
  kpi_number TEXT NOT NULL,
  kpi_name TEXT NOT NULL,
  kpi_value REAL NOT NULL,
  achievement_value TEXT,
  FOREIGN KEY(store_id) REFERENCES stores(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

var scoreTypes = map[string]string{
	"financial_score":                 "Financial",
	"customer_score":                  "Customer",
	"internal_business_process_score": "Internal_Business_Process",
	"learning_and_growth_score":       "Learning_and_Growth",
	"total_score":                     "Total",
}

var financialMetrics = []struct {
	field string
	name  string
}{
	{"revenue", "Revenue"},
	{"cogs", "COGS"},
	{"cogs_to_revenue", "COGS to Revenue"},
	{"opex", "Operating Expense"},
	{"operating_profit", "Operating Profit"},
	{"ebitda", "EBITDA"},
}

// InsertRecords stores each record with its scores and KPIs in one
// transaction and returns the number of store rows written.
func (d *DB) InsertRecords(runID string, records []internal.Record) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	storeStmt, err := tx.Prepare(`
INSERT INTO stores (
  run_id, regional, store_name, year, month, extraction_type, extraction_method,
  extraction_datetime, error_message, fields_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer storeStmt.Close()

	scoreStmt, err := tx.Prepare(`INSERT INTO scores (store_id, score_type, score_value) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer scoreStmt.Close()

	kpiStmt, err := tx.Prepare(`INSERT INTO kpis (store_id, kpi_number, kpi_name, kpi_value, achievement_value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer kpiStmt.Close()

	for _, rec := range records {
		h := rec.Head()
		fields := rec.Fields()
		blob, err := internal.MarshalFields(fields)
		if err != nil {
			return 0, err
		}
		msg := h.ErrorMessage
		if msg == "" {
			msg = internal.NoError
		}
		res, err := storeStmt.Exec(runID, h.Regional, h.StoreName, h.Year, h.Month,
			h.ExtractionType, h.ExtractionMethod, h.ExtractionTimestamp, msg, string(blob))
		if err != nil {
			return 0, fmt.Errorf("insert store %s: %w", h.StoreName, err)
		}
		storeID, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}

		values := map[string]any{}
		for _, f := range fields {
			values[f.Name] = f.Value
		}

		for _, f := range fields {
			if scoreType, ok := scoreTypes[f.Name]; ok {
				if _, err := scoreStmt.Exec(storeID, scoreType, asFloat(f.Value)); err != nil {
					return 0, err
				}
			}
		}

		if _, ok := values["revenue"]; ok {
			for _, m := range financialMetrics {
				if m.field == "ebitda" && values["has_ebitda"] != true {
					continue
				}
				v := asFloat(values[m.field])
				if _, err := kpiStmt.Exec(storeID, m.field, m.name, v, formatValue(v)); err != nil {
					return 0, err
				}
			}
		}

		for _, num := range kpiNumbers(fields) {
			v := asFloat(values["kpi_"+num+"_value"])
			name := fmt.Sprint(values["kpi_"+num+"_name"])
			if _, err := kpiStmt.Exec(storeID, num, name, v, formatValue(v)); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (d *DB) InsertRun(traceID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, timingsJson, countsJson) VALUES (?, ?, ?)`, traceID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value, updatedAt) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updatedAt=CURRENT_TIMESTAMP`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

type StoreRow struct {
	ID           int64
	RunID        string
	Regional     string
	StoreName    string
	Year         int
	Month        int
	ErrorMessage string
	Scores       map[string]float64
	KPIs         []KPIRow
}

type KPIRow struct {
	Number string
	Name   string
	Value  float64
}

// ListStores returns the stores of a run with their scores and KPIs.
func (d *DB) ListStores(runID string) ([]StoreRow, error) {
	rows, err := d.conn.Query(`
SELECT id, run_id, regional, store_name, year, month, error_message
FROM stores WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	var out []StoreRow
	for rows.Next() {
		var s StoreRow
		if err := rows.Scan(&s.ID, &s.RunID, &s.Regional, &s.StoreName, &s.Year, &s.Month, &s.ErrorMessage); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Scores, err = d.scores(out[i].ID); err != nil {
			return nil, err
		}
		if out[i].KPIs, err = d.kpis(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DB) scores(storeID int64) (map[string]float64, error) {
	rows, err := d.conn.Query(`SELECT score_type, score_value FROM scores WHERE store_id = ?`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]float64{}
	for rows.Next() {
		var k string
		var v float64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (d *DB) kpis(storeID int64) ([]KPIRow, error) {
	rows, err := d.conn.Query(`SELECT kpi_number, kpi_name, kpi_value FROM kpis WHERE store_id = ? ORDER BY id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KPIRow
	for rows.Next() {
		var k KPIRow
		if err := rows.Scan(&k.Number, &k.Name, &k.Value); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// kpiNumbers lists NN for every kpi_NN_name field, in row order.
func kpiNumbers(fields []internal.Field) []string {
	var out []string
	for _, f := range fields {
		if strings.HasPrefix(f.Name, "kpi_") && strings.HasSuffix(f.Name, "_name") {
			out = append(out, strings.TrimSuffix(strings.TrimPrefix(f.Name, "kpi_"), "_name"))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i])
		b, _ := strconv.Atoi(out[j])
		return a < b
	})
	return out
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
