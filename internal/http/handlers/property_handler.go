package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"estatelist/internal/domain"
	applog "estatelist/internal/log"
	"estatelist/internal/services"
	"estatelist/internal/validate"
)

type PropertyHandler struct {
	Props     *services.PropertyService
	Views     *services.ViewService
	BannerTTL time.Duration
}

// rowView is a table row with numbers already formatted for display.
type rowView struct {
	ID          int64
	Address     string
	Price       string
	Size        string
	Description string
}

func rowsOf(v domain.View) []rowView {
	out := make([]rowView, 0, len(v.Rows))
	for _, r := range v.Rows {
		out = append(out, rowView{
			ID:          r.ID,
			Address:     r.Address,
			Price:       strconv.FormatFloat(r.Price, 'f', -1, 64),
			Size:        strconv.FormatFloat(r.Size, 'f', -1, 64),
			Description: r.Description,
		})
	}
	return out
}

func (h *PropertyHandler) session(c *fiber.Ctx) (string, services.State, error) {
	sid := ensureSID(c)
	st, err := h.Views.Load(sid)
	if err != nil {
		applog.Error(c, "session.load.fail", err, nil)
	}
	return sid, st, err
}

// show stores st and renders the listing page. The alert is consumed here.
func (h *PropertyHandler) show(c *fiber.Ctx, sid string, st services.State, extra fiber.Map) error {
	alert := services.TakeAlert(&st)
	if err := h.Views.Save(sid, st); err != nil {
		applog.Error(c, "session.save.fail", err, nil)
		return err
	}
	data := fiber.Map{
		"Rows":     rowsOf(st.View),
		"Empty":    st.View.Empty,
		"Page":     st.Cursor.Page,
		"HasPrev":  st.Cursor.Page > 1,
		"FormOpen": st.FormOpen,
		"Draft":    st.Draft,
		"Alert":    alert,
		"SearchID": "",
		"Filter":   domain.Filter{},
	}
	if st.Banner.Message != "" {
		data["Banner"] = st.Banner
		data["BannerSeconds"] = int(h.BannerTTL.Round(time.Second) / time.Second)
	}
	for k, v := range extra {
		data[k] = v
	}
	return render(c, "properties", data)
}

// List is the on-load listing: the cursor page, or ?page=N without moving the cursor.
// It also closes the add form.
func (h *PropertyHandler) List(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	h.Props.CloseForm(&st)
	page := st.Cursor
	if n := validate.Page(c.Query("page"), 0); n > 0 {
		page = domain.PageState{Page: n}
	}
	_ = h.Props.Load(applog.Context(c), sid, &st, page)
	return h.show(c, sid, st, nil)
}

func (h *PropertyHandler) Next(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	_ = h.Props.Next(applog.Context(c), sid, &st)
	return h.show(c, sid, st, nil)
}

func (h *PropertyHandler) Prev(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	_ = h.Props.Prev(applog.Context(c), sid, &st)
	return h.show(c, sid, st, nil)
}

func (h *PropertyHandler) Search(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	raw := c.Query("id")
	if err := h.Props.Search(applog.Context(c), sid, &st, raw); errors.Is(err, validate.ErrInvalidID) {
		applog.Info(c, "properties.search.invalid", map[string]any{"id": validate.Text(raw)})
		c.Status(fiber.StatusBadRequest)
	}
	return h.show(c, sid, st, fiber.Map{"SearchID": raw})
}

func (h *PropertyHandler) Filter(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	f := validate.Filter(c.Query("location"), c.Query("price"), c.Query("size"))
	_ = h.Props.ApplyFilters(applog.Context(c), sid, &st, f)
	return h.show(c, sid, st, fiber.Map{"Filter": f})
}

func (h *PropertyHandler) NewForm(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	h.Props.ShowAddForm(&st)
	return h.show(c, sid, st, nil)
}

// Close hides the add form and shows the stored rows without asking the backend.
func (h *PropertyHandler) Close(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	h.Props.CloseForm(&st)
	return h.show(c, sid, st, nil)
}

// Current re-renders the stored view as is.
func (h *PropertyHandler) Current(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	return h.show(c, sid, st, nil)
}

func invalidInput(err error) bool {
	return errors.Is(err, validate.ErrRequired) || errors.Is(err, validate.ErrNotNumber) || errors.Is(err, validate.ErrTooLong)
}

func draftFrom(c *fiber.Ctx) services.Draft {
	return services.Draft{
		Address:     c.FormValue("address"),
		Price:       c.FormValue("price"),
		Size:        c.FormValue("size"),
		Description: c.FormValue("description"),
	}
}

func (h *PropertyHandler) Create(c *fiber.Ctx) error {
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	p, err := h.Props.Save(applog.Context(c), sid, &st, draftFrom(c))
	switch {
	case err == nil:
		applog.Audit(c, "property.create", map[string]any{"id": p.ID})
		c.Status(fiber.StatusCreated)
	case invalidInput(err):
		c.Status(fiber.StatusBadRequest)
	}
	return h.show(c, sid, st, nil)
}

func propertyID(c *fiber.Ctx) (int64, bool) {
	return validate.ID(c.Params("id"))
}

func (h *PropertyHandler) EditForm(c *fiber.Ctx) error {
	id, ok := propertyID(c)
	if !ok {
		return notFound(c, "Property not found")
	}
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	p, err := h.Props.Fetch(applog.Context(c), sid, &st, id)
	if err != nil {
		return h.show(c, sid, st, nil)
	}
	return render(c, "edit", fiber.Map{"ID": id, "Draft": services.DraftOf(p), "Alert": ""})
}

func (h *PropertyHandler) Update(c *fiber.Ctx) error {
	id, ok := propertyID(c)
	if !ok {
		return notFound(c, "Property not found")
	}
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	d := draftFrom(c)
	err = h.Props.Edit(applog.Context(c), sid, &st, id, d)
	if invalidInput(err) {
		alert := services.TakeAlert(&st)
		return render(c.Status(fiber.StatusBadRequest), "edit", fiber.Map{"ID": id, "Draft": d, "Alert": alert})
	}
	if err == nil {
		applog.Audit(c, "property.update", map[string]any{"id": id})
	}
	return h.show(c, sid, st, nil)
}

func (h *PropertyHandler) ConfirmDelete(c *fiber.Ctx) error {
	id, ok := propertyID(c)
	if !ok {
		return notFound(c, "Property not found")
	}
	return render(c, "confirm_delete", fiber.Map{"ID": id})
}

func (h *PropertyHandler) Delete(c *fiber.Ctx) error {
	id, ok := propertyID(c)
	if !ok {
		return notFound(c, "Property not found")
	}
	sid, st, err := h.session(c)
	if err != nil {
		return err
	}
	confirmed := c.FormValue("confirm") == "yes"
	if err := h.Props.Delete(applog.Context(c), sid, &st, id, confirmed); err == nil && confirmed {
		applog.Audit(c, "property.delete", map[string]any{"id": id})
	}
	return h.show(c, sid, st, nil)
}
