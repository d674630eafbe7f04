package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SaveRun writes run and its findings in a single transaction. An empty
// run.ID is replaced by a new random ID. run.Findings is set to
// len(findings), and each finding's ID and RunID are filled in.
func (s *Store) SaveRun(run *Run, findings []Finding) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Findings = len(findings)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: save run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, root, language, policy, started_at, finished_at,
		   documents, expected, findings, degraded, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.Language, run.Policy, run.StartedAt, run.FinishedAt,
		run.Documents, run.Expected, run.Findings, run.Degraded, run.Status, nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("store: save run: insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO findings (run_id, rule, message, path, start_line, start_col,
		   end_line, end_col, edit_start, edit_end, edit_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("store: save run: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range findings {
		f := &findings[i]
		var editStart, editEnd, editText any
		if f.Edit != nil {
			editStart, editEnd, editText = f.Edit.StartByte, f.Edit.EndByte, f.Edit.NewText
		}
		res, err := stmt.Exec(
			run.ID, f.Rule, f.Message, f.Path, f.StartLine, f.StartCol,
			f.EndLine, f.EndCol, editStart, editEnd, editText,
		)
		if err != nil {
			return fmt.Errorf("store: save run: finding %s at %s: %w", f.Rule, f.Path, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: save run: last insert id: %w", err)
		}
		f.ID = id
		f.RunID = run.ID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save run: commit: %w", err)
	}
	return nil
}

const runColumns = `id, root, language, policy, started_at, finished_at,
	documents, expected, findings, degraded, status, error`

func scanRun(scanner interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	var errText sql.NullString
	err := scanner.Scan(
		&r.ID, &r.Root, &r.Language, &r.Policy, &r.StartedAt, &r.FinishedAt,
		&r.Documents, &r.Expected, &r.Findings, &r.Degraded, &r.Status, &errText,
	)
	if err != nil {
		return nil, err
	}
	r.Error = errText.String
	return r, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunByID returns the run with the given ID, or nil if there is none.
func (s *Store) RunByID(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: run by id: %w", err)
	}
	return r, nil
}

// RunByPrefix returns the single run whose ID starts with prefix. It returns
// nil if no run matches and an error if more than one does.
func (s *Store) RunByPrefix(prefix string) (*Run, error) {
	if prefix == "" {
		return nil, fmt.Errorf("store: run by prefix: empty prefix")
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs WHERE id LIKE ? ESCAPE '\\' LIMIT 2", escaped+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("store: run by prefix: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: run by prefix: %w", err)
	}
	switch len(runs) {
	case 0:
		return nil, nil
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("store: run id prefix %q is ambiguous", prefix)
	}
}

// FindingsByRun returns a run's findings ordered by path and position.
func (s *Store) FindingsByRun(runID string) ([]*Finding, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, rule, message, path, start_line, start_col, end_line, end_col,
		   edit_start, edit_end, edit_text
		 FROM findings WHERE run_id = ?
		 ORDER BY path, start_line, start_col, rule, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: findings by run: %w", err)
	}
	defer rows.Close()

	var out []*Finding
	for rows.Next() {
		f := &Finding{}
		var editStart, editEnd sql.NullInt64
		var editText sql.NullString
		if err := rows.Scan(
			&f.ID, &f.RunID, &f.Rule, &f.Message, &f.Path, &f.StartLine, &f.StartCol,
			&f.EndLine, &f.EndCol, &editStart, &editEnd, &editText,
		); err != nil {
			return nil, fmt.Errorf("store: scan finding: %w", err)
		}
		if editStart.Valid && editEnd.Valid {
			f.Edit = &Edit{StartByte: int(editStart.Int64), EndByte: int(editEnd.Int64), NewText: editText.String}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RuleCounts returns the number of findings per rule for a run, most
// frequent first.
func (s *Store) RuleCounts(runID string) ([]RuleCount, error) {
	rows, err := s.db.Query(
		`SELECT rule, COUNT(*) FROM findings WHERE run_id = ?
		 GROUP BY rule ORDER BY COUNT(*) DESC, rule`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: rule counts: %w", err)
	}
	defer rows.Close()

	var out []RuleCount
	for rows.Next() {
		var rc RuleCount
		if err := rows.Scan(&rc.Rule, &rc.Count); err != nil {
			return nil, fmt.Errorf("store: scan rule count: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its findings.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete run: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
