package services

import (
	"context"
	"errors"
	"time"

	"estatelist/internal/api"
	"estatelist/internal/domain"
	applog "estatelist/internal/log"
	"estatelist/internal/validate"
)

// User-facing messages.
const (
	MsgInvalidID     = "Please enter a valid ID."
	MsgNotFound      = "No property was found with that ID."
	MsgFilterFailed  = "There was an error applying the filters. Please try again."
	MsgFillAllFields = "Please fill in all fields."
	MsgNotNumbers    = "Price and size must be numbers."
	MsgTooLong       = "Address and description must be at most 200 characters."
	MsgEditRequired  = "All fields are required."
	MsgFetchFailed   = "Could not load that property."
	MsgBusy          = "Another request is still running."
	MsgCreated       = "Property added successfully"
	MsgCreateFailed  = "Error connecting to the server"
	DefaultBannerTTL = 3 * time.Second
)

// Backend is the remote property collection. *api.Client implements it.
type Backend interface {
	List(ctx context.Context, page int) ([]domain.Property, error)
	Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error)
	Get(ctx context.Context, id int64) (domain.Property, error)
	Create(ctx context.Context, in domain.PropertyInput) (domain.Property, error)
	Update(ctx context.Context, id int64, in domain.PropertyInput) error
	Delete(ctx context.Context, id int64) error
}

// Draft is the add or edit form exactly as typed.
type Draft struct {
	Address     string `json:"address"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	Description string `json:"description"`
}

func DraftOf(p domain.Property) Draft {
	return Draft{
		Address:     p.Address,
		Price:       formatNumber(p.Price),
		Size:        formatNumber(p.Size),
		Description: p.Description,
	}
}

// State is everything one session currently sees.
type State struct {
	Cursor   domain.PageState
	View     domain.View
	FormOpen bool
	Draft    Draft
	Banner   domain.Banner
	Alert    string
}

func NewState() State { return State{Cursor: domain.FirstPage()} }

type PropertyService struct {
	API       Backend
	Guard     *InFlight
	BannerTTL time.Duration
	Now       func() time.Time
}

func NewPropertyService(b Backend, guard *InFlight, bannerTTL time.Duration) *PropertyService {
	if bannerTTL <= 0 {
		bannerTTL = DefaultBannerTTL
	}
	return &PropertyService{API: b, Guard: guard, BannerTTL: bannerTTL, Now: time.Now}
}

func (s *PropertyService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *PropertyService) banner(st *State, kind, msg string) {
	st.Banner = domain.Banner{Message: msg, Kind: kind, ExpiresAt: s.now().Add(s.BannerTTL)}
}

func (s *PropertyService) acquire(ctx context.Context, sid, kind string, st *State) (func(), error) {
	release, err := s.Guard.Acquire(sid, kind)
	if err != nil {
		applog.WarnCtx(ctx, "properties."+kind+".busy", map[string]any{"sid": sid})
		st.Alert = MsgBusy
		return nil, err
	}
	return release, nil
}

// Load replaces the rendered rows with page. On failure the rows stay as they were
// and nothing is shown to the user. The cursor is not touched.
func (s *PropertyService) Load(ctx context.Context, sid string, st *State, page domain.PageState) error {
	release, err := s.acquire(ctx, sid, KindLoad, st)
	if err != nil {
		return err
	}
	defer release()

	props, err := s.API.List(ctx, page.Page)
	if err != nil {
		applog.ErrorCtx(ctx, "properties.load.fail", err, map[string]any{"page": page.Page})
		return err
	}
	st.View = domain.ViewOf(props)
	applog.InfoCtx(ctx, "properties.load", map[string]any{"page": page.Page, "count": len(props)})
	return nil
}

// Next advances the cursor and loads the new page. A busy guard leaves the cursor where it was.
func (s *PropertyService) Next(ctx context.Context, sid string, st *State) error {
	return s.move(ctx, sid, st, st.Cursor.Next())
}

// Prev moves the cursor back; on the first page it does nothing.
func (s *PropertyService) Prev(ctx context.Context, sid string, st *State) error {
	p, moved := st.Cursor.Prev()
	if !moved {
		return nil
	}
	return s.move(ctx, sid, st, p)
}

// move loads to and makes it the cursor. Load failures still move the cursor;
// only ErrBusy, where nothing was requested, rolls it back.
func (s *PropertyService) move(ctx context.Context, sid string, st *State, to domain.PageState) error {
	from := st.Cursor
	st.Cursor = to
	err := s.Load(ctx, sid, st, to)
	if errors.Is(err, ErrBusy) {
		st.Cursor = from
	}
	return err
}

// Search shows the single property with the typed id.
func (s *PropertyService) Search(ctx context.Context, sid string, st *State, raw string) error {
	id, ok := validate.ID(raw)
	if !ok {
		st.Alert = MsgInvalidID
		return validate.ErrInvalidID
	}
	release, err := s.acquire(ctx, sid, KindSearch, st)
	if err != nil {
		return err
	}
	defer release()

	p, err := s.API.Get(ctx, id)
	if err != nil {
		applog.ErrorCtx(ctx, "properties.search.fail", err, map[string]any{"id": id})
		st.Alert = MsgNotFound
		return err
	}
	st.View = domain.ViewOf([]domain.Property{p})
	return nil
}

// ApplyFilters renders the filtered collection, or the "no properties" row.
// The cursor is neither read nor reset.
func (s *PropertyService) ApplyFilters(ctx context.Context, sid string, st *State, f domain.Filter) error {
	release, err := s.acquire(ctx, sid, KindFilter, st)
	if err != nil {
		return err
	}
	defer release()

	props, err := s.API.Filter(ctx, f)
	if err != nil {
		applog.ErrorCtx(ctx, "properties.filter.fail", err, map[string]any{"location": f.Location, "price": f.Price, "size": f.Size})
		st.Alert = MsgFilterFailed
		return err
	}
	if len(props) == 0 {
		st.View = domain.View{Empty: true}
		return nil
	}
	st.View = domain.ViewOf(props)
	return nil
}

func (s *PropertyService) ShowAddForm(st *State) { st.FormOpen = true }

func (s *PropertyService) CloseForm(st *State) {
	st.FormOpen = false
	st.Draft = Draft{}
}

// Save creates a property from the add form and appends it to the rendered rows.
func (s *PropertyService) Save(ctx context.Context, sid string, st *State, d Draft) (domain.Property, error) {
	st.FormOpen = true
	st.Draft = d
	in, err := validate.Property(d.Address, d.Price, d.Size, d.Description)
	if err != nil {
		st.Alert = validationMessage(err, MsgFillAllFields)
		return domain.Property{}, err
	}
	release, err := s.acquire(ctx, sid, KindCreate, st)
	if err != nil {
		return domain.Property{}, err
	}
	defer release()

	p, err := s.API.Create(ctx, in)
	if err != nil {
		applog.ErrorCtx(ctx, "properties.create.fail", err, nil)
		s.banner(st, domain.BannerError, MsgCreateFailed)
		return domain.Property{}, err
	}
	st.View = st.View.Append(p)
	s.CloseForm(st)
	s.banner(st, domain.BannerSuccess, MsgCreated)
	return p, nil
}

// Fetch loads one property for the edit form.
func (s *PropertyService) Fetch(ctx context.Context, sid string, st *State, id int64) (domain.Property, error) {
	release, err := s.acquire(ctx, sid, KindFetch, st)
	if err != nil {
		return domain.Property{}, err
	}
	defer release()

	p, err := s.API.Get(ctx, id)
	if err != nil {
		applog.ErrorCtx(ctx, "properties.fetch.fail", err, map[string]any{"id": id})
		st.Alert = MsgFetchFailed
		return domain.Property{}, err
	}
	return p, nil
}

// Edit replaces the editable fields of id and reloads the page under the cursor.
// A non-2xx answer is logged and the reload still happens; a transport failure skips it.
func (s *PropertyService) Edit(ctx context.Context, sid string, st *State, id int64, d Draft) error {
	in, err := validate.Property(d.Address, d.Price, d.Size, d.Description)
	if err != nil {
		st.Alert = validationMessage(err, MsgEditRequired)
		return err
	}
	release, err := s.acquire(ctx, sid, KindUpdate, st)
	if err != nil {
		return err
	}
	err = s.API.Update(ctx, id, in)
	release()
	if err != nil {
		applog.ErrorCtx(ctx, "properties.update.fail", err, map[string]any{"id": id})
		var se *api.StatusError
		if !errors.As(err, &se) {
			return err
		}
	}
	if lerr := s.Load(ctx, sid, st, st.Cursor); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

// Delete removes id after confirmation and reloads the page under the cursor.
// Without confirmation no request is made.
func (s *PropertyService) Delete(ctx context.Context, sid string, st *State, id int64, confirmed bool) error {
	if !confirmed {
		return nil
	}
	release, err := s.acquire(ctx, sid, KindDelete, st)
	if err != nil {
		return err
	}
	err = s.API.Delete(ctx, id)
	release()
	if err != nil {
		applog.ErrorCtx(ctx, "properties.delete.fail", err, map[string]any{"id": id})
		var se *api.StatusError
		if !errors.As(err, &se) {
			return err
		}
	}
	if lerr := s.Load(ctx, sid, st, st.Cursor); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

func validationMessage(err error, required string) string {
	switch {
	case errors.Is(err, validate.ErrNotNumber):
		return MsgNotNumbers
	case errors.Is(err, validate.ErrTooLong):
		return MsgTooLong
	}
	return required
}
