package handlers

import (
	"github.com/jmoiron/sqlx"

	"estatelist/internal/config"
	"estatelist/internal/repos"
	"estatelist/internal/services"
)

type Deps struct {
	PropertyHandler *PropertyHandler
	Views           *services.ViewService
}

func NewDeps(db *sqlx.DB, cfg config.Config, backend services.Backend) *Deps {
	viewSvc := services.NewViewService(repos.NewViewRepo(db))
	propSvc := services.NewPropertyService(backend, services.NewInFlight(1), cfg.BannerTTL)

	return &Deps{
		PropertyHandler: &PropertyHandler{Props: propSvc, Views: viewSvc, BannerTTL: propSvc.BannerTTL},
		Views:           viewSvc,
	}
}
