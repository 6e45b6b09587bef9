package repos

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type ViewRepo struct{ db *sqlx.DB }

func NewViewRepo(db *sqlx.DB) *ViewRepo { return &ViewRepo{db: db} }

// ViewRow is the stored view state of one session.
type ViewRow struct {
	SessionID       string `db:"id"`
	Page            int    `db:"page"`
	RowsJSON        string `db:"rows_json"`
	FormOpen        bool   `db:"form_open"`
	DraftJSON       string `db:"draft_json"`
	BannerMessage   string `db:"banner_message"`
	BannerKind      string `db:"banner_kind"`
	BannerExpiresAt string `db:"banner_expires_at"`
	Alert           string `db:"alert"`
}

// Get returns the stored state, creating a fresh row (page 1) on first use.
func (r *ViewRepo) Get(sessionID string) (ViewRow, error) {
	var v ViewRow
	err := r.db.Get(&v, r.db.Rebind(`
	  SELECT id, page, rows_json, form_open, draft_json,
	         banner_message, banner_kind, banner_expires_at, alert
	  FROM view_sessions WHERE id = ?`), sessionID)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ViewRow{}, err
	}
	_, err = r.db.Exec(r.db.Rebind(`
	  INSERT INTO view_sessions(id, page, last_seen) VALUES(?, 1, ?)
	  ON CONFLICT(id) DO NOTHING`), sessionID, now())
	if err != nil {
		return ViewRow{}, err
	}
	return ViewRow{SessionID: sessionID, Page: 1}, nil
}

// Save upserts the whole state of v.SessionID.
func (r *ViewRepo) Save(v ViewRow) error {
	if v.Page < 1 {
		v.Page = 1
	}
	form := 0
	if v.FormOpen {
		form = 1
	}
	_, err := r.db.Exec(r.db.Rebind(`
	  INSERT INTO view_sessions
	    (id, page, rows_json, form_open, draft_json, banner_message, banner_kind, banner_expires_at, alert, last_seen)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	  ON CONFLICT(id) DO UPDATE SET
	    page = excluded.page,
	    rows_json = excluded.rows_json,
	    form_open = excluded.form_open,
	    draft_json = excluded.draft_json,
	    banner_message = excluded.banner_message,
	    banner_kind = excluded.banner_kind,
	    banner_expires_at = excluded.banner_expires_at,
	    alert = excluded.alert,
	    last_seen = excluded.last_seen`),
		v.SessionID, v.Page, v.RowsJSON, form, v.DraftJSON,
		v.BannerMessage, v.BannerKind, v.BannerExpiresAt, v.Alert, now())
	return err
}

// PurgeIdle drops sessions not seen since before cutoff and reports how many went.
func (r *ViewRepo) PurgeIdle(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(r.db.Rebind(`DELETE FROM view_sessions WHERE last_seen < ?`), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
