package services

import (
	"context"
	"encoding/json"
	"time"

	"estatelist/internal/domain"
	applog "estatelist/internal/log"
	"estatelist/internal/repos"
)

// ViewStore is the persistence used by ViewService. *repos.ViewRepo implements it.
type ViewStore interface {
	Get(sessionID string) (repos.ViewRow, error)
	Save(v repos.ViewRow) error
	PurgeIdle(cutoff time.Time) (int64, error)
}

// ViewService loads and stores per-session State.
type ViewService struct {
	Store ViewStore
	Now   func() time.Time
}

func NewViewService(store ViewStore) *ViewService {
	return &ViewService{Store: store, Now: time.Now}
}

func (s *ViewService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Load returns the state of sid. Expired banners are dropped on the way out.
func (s *ViewService) Load(sid string) (State, error) {
	row, err := s.Store.Get(sid)
	if err != nil {
		return State{}, err
	}
	st := NewState()
	if row.Page > 0 {
		st.Cursor = domain.PageState{Page: row.Page}
	}
	if row.RowsJSON != "" {
		if err := json.Unmarshal([]byte(row.RowsJSON), &st.View); err != nil {
			return State{}, err
		}
	}
	st.FormOpen = row.FormOpen
	if row.DraftJSON != "" {
		if err := json.Unmarshal([]byte(row.DraftJSON), &st.Draft); err != nil {
			return State{}, err
		}
	}
	if row.BannerMessage != "" {
		exp, err := time.Parse(time.RFC3339Nano, row.BannerExpiresAt)
		if err != nil {
			applog.ErrorCtx(context.Background(), "session.banner.parse.fail", err,
				map[string]any{"sid": sid, "expires_at": row.BannerExpiresAt})
		} else if b := (domain.Banner{Message: row.BannerMessage, Kind: row.BannerKind, ExpiresAt: exp}); b.Visible(s.now()) {
			st.Banner = b
		}
	}
	st.Alert = row.Alert
	return st, nil
}

// Save persists st for sid.
func (s *ViewService) Save(sid string, st State) error {
	rows, err := json.Marshal(st.View)
	if err != nil {
		return err
	}
	draft, err := json.Marshal(st.Draft)
	if err != nil {
		return err
	}
	row := repos.ViewRow{
		SessionID: sid,
		Page:      st.Cursor.Page,
		RowsJSON:  string(rows),
		FormOpen:  st.FormOpen,
		DraftJSON: string(draft),
		Alert:     st.Alert,
	}
	if st.Banner.Message != "" {
		row.BannerMessage = st.Banner.Message
		row.BannerKind = st.Banner.Kind
		row.BannerExpiresAt = st.Banner.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return s.Store.Save(row)
}

// TakeAlert returns the pending alert and clears it so it shows once.
func TakeAlert(st *State) string {
	a := st.Alert
	st.Alert = ""
	return a
}

// PurgeIdle drops sessions idle for longer than maxIdle.
func (s *ViewService) PurgeIdle(maxIdle time.Duration) (int64, error) {
	return s.Store.PurgeIdle(s.now().Add(-maxIdle))
}
