package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
	"github.com/iliyamo/bus-seat-reservation/internal/session"
	"github.com/iliyamo/bus-seat-reservation/internal/workflow"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	labelStyle   = lipgloss.NewStyle().Width(12)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	pendingStyle = lipgloss.NewStyle().Underline(true)

	seatStyles = map[seatmap.Display]lipgloss.Style{
		seatmap.Available:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		seatmap.Mine:        lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		seatmap.HeldByOther: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		seatmap.Booked:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Faint(true),
	}

	noteColors = map[session.Kind]lipgloss.Color{
		session.Info:           "4",
		session.Contention:     "3",
		session.StaleSelection: "3",
		session.Conflict:       "1",
		session.Transport:      "1",
		session.Validation:     "5",
	}
)

var stepHints = map[workflow.Step]string{
	workflow.RouteSelect:     "enter search/choose · tab next field · q quit",
	workflow.DateSelect:      "enter choose · esc back · q quit",
	workflow.TripSelect:      "enter choose · esc back · q quit",
	workflow.SeatSelect:      "arrows move · tab deck · space toggle · enter continue · esc back · ctrl+l refresh",
	workflow.CustomerDetails: "tab next · enter on last field or ctrl+s books · esc back",
	workflow.Confirmation:    "enter new booking · q quit",
}

func (m appModel) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")
	switch m.view.Workflow.Step {
	case workflow.RouteSelect:
		b.WriteString(m.searchView())
	case workflow.DateSelect, workflow.TripSelect:
		b.WriteString(m.list.View())
	case workflow.SeatSelect:
		b.WriteString(m.seatView())
	case workflow.CustomerDetails:
		b.WriteString(m.formView())
	case workflow.Confirmation:
		b.WriteString(m.confirmationView())
	}
	b.WriteString("\n\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(stepHints[m.view.Workflow.Step]))
	return b.String()
}

func (m appModel) headerView() string {
	st := m.view.Workflow
	parts := []string{titleStyle.Render("Bus tickets")}
	if st.Route != nil {
		parts = append(parts, st.Route.FromCity+" → "+st.Route.ToCity)
	}
	if st.Date != "" {
		parts = append(parts, st.Date)
	}
	if st.Trip != nil {
		parts = append(parts, st.Trip.DepartureTime+" "+st.Trip.BusCode)
	}
	return strings.Join(parts, faintStyle.Render(" · "))
}

func (m appModel) searchView() string {
	var b strings.Builder
	b.WriteString(m.search[fieldFrom].View())
	b.WriteString("\n")
	b.WriteString(m.search[fieldTo].View())
	if c := m.view.Cities; len(c.FromCities) > 0 {
		b.WriteString("\n")
		b.WriteString(faintStyle.Render("from: " + strings.Join(c.FromCities, ", ")))
		b.WriteString("\n")
		b.WriteString(faintStyle.Render("to:   " + strings.Join(c.ToCities, ", ")))
	}
	if len(m.view.Workflow.Routes) > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.list.View())
	}
	return b.String()
}

func (m appModel) seatView() string {
	v := m.view
	if len(v.Layout) == 0 {
		return "Loading seat map..."
	}
	decks := make([]string, 0, len(v.Layout))
	for di, d := range v.Layout {
		var rows []string
		var row strings.Builder
		for i := 0; i < d.Seats; i++ {
			id := d.SeatID(i + 1)
			cell := seatStyles[displayOf(v, id)].Render(fmt.Sprintf("[%s]", strings.TrimPrefix(string(id), d.Prefix)))
			if v.Pending[id] {
				cell = pendingStyle.Render(cell)
			}
			if di == m.deck && i == m.seat {
				cell = cursorStyle.Render(cell)
			}
			row.WriteString(cell)
			if i%seatsPerRow == 1 {
				row.WriteString("   ")
			}
			if i%seatsPerRow == seatsPerRow-1 || i == d.Seats-1 {
				rows = append(rows, row.String())
				row.Reset()
			}
		}
		title := fmt.Sprintf("Deck %d (%s)", di+1, strings.TrimSuffix(d.Prefix, "-"))
		decks = append(decks, panelStyle.Render(titleStyle.Render(title)+"\n"+strings.Join(rows, "\n")))
	}
	grid := lipgloss.JoinHorizontal(lipgloss.Top, decks...)

	legend := strings.Join([]string{
		seatStyles[seatmap.Available].Render("available"),
		seatStyles[seatmap.Mine].Render("yours"),
		seatStyles[seatmap.HeldByOther].Render("held"),
		seatStyles[seatmap.Booked].Render("booked"),
	}, "  ")

	sel := "none"
	if len(v.Selection) > 0 {
		sel = joinSeats(v.Selection)
	}
	summary := fmt.Sprintf("Free: %d  Selected: %s", v.Free, sel)
	if st := v.Workflow; st.Route != nil && len(v.Selection) > 0 {
		summary += fmt.Sprintf("  Total: %s", money(st.Route.BasePrice*int64(len(v.Selection))))
	}
	return grid + "\n" + legend + "\n" + summary
}

func displayOf(v session.View, id model.SeatID) seatmap.Display {
	if d, ok := v.Seats[id]; ok {
		return d
	}
	return seatmap.Available
}

func (m appModel) formView() string {
	labels := [fieldCount]string{"Name", "Phone", "CCCD", "Email", "Files"}
	var b strings.Builder
	if d := m.view.Workflow.Draft; d != nil {
		b.WriteString(fmt.Sprintf("Seats %s · Total %s\n\n", joinSeats(d.SeatIDs), money(d.TotalPrice)))
	}
	for i := range m.form {
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString(m.form[i].View())
		b.WriteString("\n")
	}
	if m.view.Booking {
		b.WriteString("\n" + m.spinner.View() + " Booking...")
	}
	return b.String()
}

func (m appModel) confirmationView() string {
	c := m.view.Workflow.Confirmation
	if c == nil {
		return ""
	}
	total := c.TotalPrice
	if c.ServerTotal != 0 {
		total = c.ServerTotal
	}
	lines := []string{
		titleStyle.Render("Booking confirmed"),
		"",
		labelStyle.Render("Booking") + c.BookingID,
		labelStyle.Render("Trip") + c.TripID,
		labelStyle.Render("Seats") + joinSeats(c.SeatIDs),
		labelStyle.Render("Passenger") + c.Customer.Name,
		labelStyle.Render("Phone") + c.Customer.Phone,
		labelStyle.Render("Total") + money(total),
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m appModel) statusView() string {
	var parts []string
	if m.view.Busy {
		parts = append(parts, m.spinner.View())
	}
	if m.err != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error()))
	} else if n := m.view.Last; n != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(noteColors[n.Kind]).Render(n.Message))
	}
	if m.view.CanRetry {
		parts = append(parts, faintStyle.Render("(r to retry)"))
	}
	return strings.Join(parts, " ")
}

func routeDesc(r model.Route) string {
	return fmt.Sprintf("%d km · %s per seat", r.DistanceKm, money(r.BasePrice))
}

func tripDesc(t model.Trip) string {
	return fmt.Sprintf("%s · %d/%d seats free", t.BusCode, t.AvailableSeats, t.Seats())
}

func joinSeats(ids []model.SeatID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}

// money formats an amount in dong with thousands separators.
func money(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := fmt.Sprintf("%d", v)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + " đ"
	if neg {
		return "-" + out
	}
	return out
}
