package server

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chazu/aoc/compiler"
)

// ---------------------------------------------------------------------------
// Workspace symbol index
// ---------------------------------------------------------------------------

// Index is a SQLite backed store of every named symbol in every document the
// server has analyzed. It answers workspace/symbol queries across files.
type Index struct {
	mu sync.Mutex
	db *sql.DB
}

// IndexedSymbol is one row of the index.
type IndexedSymbol struct {
	URI  string
	Name string
	Kind SymbolKind

	// Range covers the symbol name.
	Range compiler.Range
}

// OpenIndex opens or creates the symbol database at path. Use ":memory:"
// for a throwaway index.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS symbols (
		uri            TEXT    NOT NULL,
		name           TEXT    NOT NULL,
		kind           INTEGER NOT NULL,
		start_line     INTEGER NOT NULL,
		start_char     INTEGER NOT NULL,
		end_line       INTEGER NOT NULL,
		end_char       INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating symbols table: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS symbols_by_name ON symbols (name)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating name index: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Update replaces every indexed symbol of uri with the named symbols of the
// given tree.
func (ix *Index) Update(uri string, tree []DocumentSymbol) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("starting index update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM symbols WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("clearing symbols for %s: %w", uri, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO symbols
		(uri, name, kind, start_line, start_char, end_line, end_char)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing symbol insert: %w", err)
	}
	defer stmt.Close()

	if err := insertSymbols(stmt, uri, tree); err != nil {
		return err
	}

	return tx.Commit()
}

func insertSymbols(stmt *sql.Stmt, uri string, tree []DocumentSymbol) error {
	for i := range tree {
		symbol := &tree[i]
		if symbol.Name != "" {
			_, err := stmt.Exec(
				uri, symbol.Name, int(symbol.Kind),
				symbol.NameRange.Start.Line, symbol.NameRange.Start.Character,
				symbol.NameRange.End.Line, symbol.NameRange.End.Character,
			)
			if err != nil {
				return fmt.Errorf("inserting symbol %s: %w", symbol.Name, err)
			}
		}

		if err := insertSymbols(stmt, uri, symbol.Children); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops every indexed symbol of uri.
func (ix *Index) Remove(uri string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.Exec("DELETE FROM symbols WHERE uri = ?", uri)
	if err != nil {
		return fmt.Errorf("removing symbols for %s: %w", uri, err)
	}
	return nil
}

// Query returns every symbol whose name contains query, ordered by file and
// position. An empty query returns everything.
func (ix *Index) Query(query string) ([]IndexedSymbol, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.Query(`SELECT uri, name, kind, start_line, start_char, end_line, end_char
		FROM symbols
		WHERE name LIKE ?
		ORDER BY uri, start_line, start_char`,
		"%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer rows.Close()

	var symbols []IndexedSymbol
	for rows.Next() {
		var symbol IndexedSymbol
		var kind int
		err := rows.Scan(
			&symbol.URI, &symbol.Name, &kind,
			&symbol.Range.Start.Line, &symbol.Range.Start.Character,
			&symbol.Range.End.Line, &symbol.Range.End.Character,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning symbol row: %w", err)
		}
		symbol.Kind = SymbolKind(kind)
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}
