package domain

// Row is one rendered table row.
type Row struct {
	ID          int64   `json:"id"`
	Address     string  `json:"address"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Description string  `json:"description"`
}

// View is what the property table currently shows.
// Empty marks the single "no properties found" row.
type View struct {
	Rows  []Row `json:"rows"`
	Empty bool  `json:"empty"`
}

func RowOf(p Property) Row {
	return Row{ID: p.ID, Address: p.Address, Price: p.Price, Size: p.Size, Description: p.Description}
}

// ViewOf renders properties in the order given.
func ViewOf(props []Property) View {
	rows := make([]Row, 0, len(props))
	for _, p := range props {
		rows = append(rows, RowOf(p))
	}
	return View{Rows: rows}
}

// Append adds one row at the end, dropping the empty marker.
func (v View) Append(p Property) View {
	rows := make([]Row, 0, len(v.Rows)+1)
	rows = append(rows, v.Rows...)
	rows = append(rows, RowOf(p))
	return View{Rows: rows}
}
