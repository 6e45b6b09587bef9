package domain

import "time"

// Property is a single listing as exchanged with the backend.
type Property struct {
	ID          int64   `json:"propertyId"`
	Address     string  `json:"address"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Description string  `json:"description"`
}

// PropertyInput is the create/update payload. The backend assigns the id.
type PropertyInput struct {
	Address     string  `json:"address"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Description string  `json:"description"`
}

// Filter holds the optional free-text filter fields as typed by the user.
type Filter struct {
	Location string
	Price    string
	Size     string
}

// PageState is the pagination cursor. Page is never below 1.
type PageState struct {
	Page int `json:"page"`
}

func FirstPage() PageState { return PageState{Page: 1} }

func (s PageState) Next() PageState { return PageState{Page: s.Page + 1} }

// Prev returns the previous page and false when already on the first page.
func (s PageState) Prev() (PageState, bool) {
	if s.Page <= 1 {
		return PageState{Page: 1}, false
	}
	return PageState{Page: s.Page - 1}, true
}

const (
	BannerSuccess = "success"
	BannerError   = "error"
)

// Banner is a transient feedback message.
type Banner struct {
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (b Banner) Visible(now time.Time) bool {
	return b.Message != "" && now.Before(b.ExpiresAt)
}
