package services_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatelist/internal/domain"
	applog "estatelist/internal/log"
	"estatelist/internal/repos"
	"estatelist/internal/services"
)

func newViews(t *testing.T, now time.Time) *services.ViewService {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	vs := services.NewViewService(repos.NewViewRepo(db))
	vs.Now = func() time.Time { return now }
	return vs
}

func TestViewServiceFreshSessionStartsOnPageOne(t *testing.T) {
	vs := newViews(t, fixedNow)
	st, err := vs.Load("new-sid")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Cursor.Page)
	assert.Empty(t, st.View.Rows)
	assert.False(t, st.FormOpen)
}

func TestViewServiceRoundTrip(t *testing.T) {
	vs := newViews(t, fixedNow)
	want := services.State{
		Cursor:   domain.PageState{Page: 3},
		View:     domain.ViewOf(seed(2)),
		FormOpen: true,
		Draft:    services.Draft{Address: "a", Price: "1"},
		Banner:   domain.Banner{Message: services.MsgCreated, Kind: domain.BannerSuccess, ExpiresAt: fixedNow.Add(time.Second)},
		Alert:    services.MsgNotFound,
	}
	require.NoError(t, vs.Save("sid", want))

	got, err := vs.Load("sid")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state (-want +got):\n%s", diff)
	}
}

func TestViewServiceDropsExpiredBanner(t *testing.T) {
	vs := newViews(t, fixedNow)
	st := services.NewState()
	st.Banner = domain.Banner{Message: services.MsgCreateFailed, Kind: domain.BannerError, ExpiresAt: fixedNow.Add(3 * time.Second)}
	require.NoError(t, vs.Save("sid", st))

	vs.Now = func() time.Time { return fixedNow.Add(4 * time.Second) }
	got, err := vs.Load("sid")
	require.NoError(t, err)
	assert.Empty(t, got.Banner.Message)
}

func TestViewServiceKeepsEmptyMarker(t *testing.T) {
	vs := newViews(t, fixedNow)
	st := services.NewState()
	st.View = domain.View{Empty: true}
	require.NoError(t, vs.Save("sid", st))

	got, err := vs.Load("sid")
	require.NoError(t, err)
	assert.True(t, got.View.Empty)
}

func TestTakeAlertShowsOnce(t *testing.T) {
	st := services.NewState()
	st.Alert = services.MsgInvalidID
	assert.Equal(t, services.MsgInvalidID, services.TakeAlert(&st))
	assert.Empty(t, services.TakeAlert(&st))
}

func TestViewServiceLogsAndDropsUnreadableBanner(t *testing.T) {
	var buf bytes.Buffer
	old := applog.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { applog.SetLogger(old) })

	vs := newViews(t, fixedNow)
	require.NoError(t, vs.Store.Save(repos.ViewRow{
		SessionID:       "sid",
		Page:            2,
		BannerMessage:   services.MsgCreated,
		BannerKind:      domain.BannerSuccess,
		BannerExpiresAt: "not-a-time",
	}))

	st, err := vs.Load("sid")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Cursor.Page)
	assert.Empty(t, st.Banner.Message)
	assert.Contains(t, buf.String(), "session.banner.parse.fail")
	assert.Contains(t, buf.String(), "not-a-time")
}
