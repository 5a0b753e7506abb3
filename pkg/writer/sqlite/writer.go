// Package sqlite stores analysis results in a SQLite database, one run per
// call, in long format.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/experiment"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// Date format for RunTable (ISO 8601)
	runDateFormat = time.RFC3339
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"
)

// Writer handles writing analysis runs to SQLite database files
type Writer struct {
	db            *sql.DB
	outputPath    string
	runStmt       *sql.Stmt
	parameterStmt *sql.Stmt
	resultStmt    *sql.Stmt
	fitStmt       *sql.Stmt
	rowsWritten   int
}

// NewWriter creates a new SQLite writer. An existing database is appended to.
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		CreationDate TEXT,
		ExperimentType TEXT,
		Assay TEXT,
		Modified BOOL,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS ParameterTable (
		RunId TEXT REFERENCES RunTable(RunId),
		Name TEXT,
		Position INTEGER,
		Value TEXT
	);

	CREATE TABLE IF NOT EXISTS ResultTable (
		RunId TEXT REFERENCES RunTable(RunId),
		TableName TEXT,
		RowIndex INTEGER,
		SampleId TEXT,
		SampleName TEXT,
		Comments TEXT,
		ColumnName TEXT,
		Value DOUBLE
	);

	CREATE TABLE IF NOT EXISTS FitTable (
		RunId TEXT REFERENCES RunTable(RunId),
		Cluster TEXT,
		Slope DOUBLE,
		Intercept DOUBLE,
		R2 DOUBLE,
		Points INTEGER,
		Source TEXT,
		Borrowed BOOL,
		blobQuantity BLOB,
		blobSignal BLOB,
		blobMask BLOB
	);

	CREATE TABLE IF NOT EXISTS MaintenanceTable (
		CreationDate TEXT,
		NoofRowsWritten INTEGER,
		Description TEXT
	);

	CREATE INDEX IF NOT EXISTS ResultTableRun ON ResultTable (RunId, TableName);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.runStmt, err = w.db.Prepare(`
		INSERT INTO RunTable (RunId, CreationDate, ExperimentType, Assay, Modified, Description)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare run statement: %w", err)
	}

	w.parameterStmt, err = w.db.Prepare(`
		INSERT INTO ParameterTable (RunId, Name, Position, Value) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare parameter statement: %w", err)
	}

	w.resultStmt, err = w.db.Prepare(`
		INSERT INTO ResultTable (
			RunId, TableName, RowIndex, SampleId, SampleName, Comments, ColumnName, Value
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result statement: %w", err)
	}

	w.fitStmt, err = w.db.Prepare(`
		INSERT INTO FitTable (
			RunId, Cluster, Slope, Intercept, R2, Points, Source, Borrowed,
			blobQuantity, blobSignal, blobMask
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fit statement: %w", err)
	}

	return nil
}

// WriteResults stores one analysis run in a single transaction and returns
// its run identifier.
func (w *Writer) WriteResults(ctx context.Context, res *experiment.Results, description string) (string, error) {
	runID := uuid.NewString()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.StmtContext(ctx, w.runStmt).ExecContext(ctx,
		runID,                                  // RunId
		time.Now().UTC().Format(runDateFormat), // CreationDate
		res.ExperimentType(),                   // ExperimentType
		res.Assay,                              // Assay
		res.Modified,                           // Modified
		description,                            // Description
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	paramStmt := tx.StmtContext(ctx, w.parameterStmt)
	for _, p := range res.Log {
		for i, v := range p.Values {
			if _, err := paramStmt.ExecContext(ctx, runID, p.Name, i, v); err != nil {
				return "", fmt.Errorf("failed to insert parameter %s: %w", p.Name, err)
			}
		}
	}

	resultStmt := tx.StmtContext(ctx, w.resultStmt)
	rows := 0
	for _, t := range res.Tables {
		n, err := writeTable(ctx, resultStmt, runID, t)
		if err != nil {
			return "", err
		}
		rows += n
	}

	fitStmt := tx.StmtContext(ctx, w.fitStmt)
	for _, c := range res.Curves {
		f := c.Fit
		_, err := fitStmt.ExecContext(ctx,
			runID,              // RunId
			f.Name,             // Cluster
			f.Slope,            // Slope
			f.Intercept,        // Intercept
			nullable(f.R2),     // R2
			f.Points(),         // Points
			f.Source.Key,       // Source
			f.Source.Borrowed,  // Borrowed
			encodeFloat64(c.X), // blobQuantity
			encodeFloat64(c.Y), // blobSignal
			encodeMask(f.Mask), // blobMask
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert fit %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	w.rowsWritten += rows
	return runID, nil
}

// writeTable stores a table cell by cell and returns the number of cells.
func writeTable(ctx context.Context, stmt *sql.Stmt, runID string, t *core.Table) (int, error) {
	n := 0
	for i, row := range t.Rows {
		for j, col := range t.Columns {
			_, err := stmt.ExecContext(ctx,
				runID,                   // RunId
				t.Name,                  // TableName
				i,                       // RowIndex
				row.SampleID,            // SampleId
				row.SampleName,          // SampleName
				row.Comments,            // Comments
				col,                     // ColumnName
				nullable(row.Values[j]), // Value
			)
			if err != nil {
				return n, fmt.Errorf("failed to insert %s row %d: %w", t.Name, i, err)
			}
			n++
		}
	}
	return n, nil
}

// nullable maps a missing value (NaN) to NULL.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 decodes a blob written by encodeFloat64.
func DecodeFloat64(buf []byte) []float64 {
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out
}

func encodeMask(mask []bool) []byte {
	buf := make([]byte, len(mask))
	for i, ok := range mask {
		if ok {
			buf[i] = 1
		}
	}
	return buf
}

// Finalize writes the maintenance record and closes the database
func (w *Writer) Finalize() error {
	_, err := w.db.Exec(`
		INSERT INTO MaintenanceTable (CreationDate, NoofRowsWritten, Description)
		VALUES (?, ?, ?)
	`, time.Now().Format(maintenanceDateFormat), w.rowsWritten, "")
	if err != nil {
		return fmt.Errorf("failed to insert maintenance: %w", err)
	}

	// Close prepared statements
	for _, stmt := range []*sql.Stmt{w.runStmt, w.parameterStmt, w.resultStmt, w.fitStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
