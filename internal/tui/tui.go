// Package tui is the terminal front end of a booking session.  It renders
// session views and turns key presses into session intents; all state
// lives in the session.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/session"
	"github.com/iliyamo/bus-seat-reservation/internal/workflow"
)

// Controller is the part of a session the terminal drives.
type Controller interface {
	View(ctx context.Context) (session.View, error)
	Changed() <-chan struct{}

	LoadCities()
	SearchRoutes(from, to string)
	ChooseRoute(routeID string)
	ChooseDate(date string)
	ChooseTrip(tripID string)
	ToggleSeat(id model.SeatID)
	ContinueToDetails()
	SubmitBooking(info model.CustomerInfo, files []string)
	Back(to workflow.Step)
	Restart()
	Retry()
	Refresh()
}

// seatsPerRow is the grid width; an aisle is drawn after the second seat.
const seatsPerRow = 4

// search form fields
const (
	fieldFrom = iota
	fieldTo
	focusRoutes
)

// customer form fields
const (
	fieldName = iota
	fieldPhone
	fieldNationalID
	fieldEmail
	fieldFiles
	fieldCount
)

type viewMsg struct {
	view session.View
	err  error
}

type changedMsg struct{}

type appModel struct {
	ctl Controller

	view session.View
	err  error

	width  int
	height int

	search      [2]textinput.Model
	searchFocus int

	list    list.Model
	listFor workflow.Step
	listKey string

	deck int
	seat int

	form      [fieldCount]textinput.Model
	formFocus int

	spinner spinner.Model
}

type item struct {
	id, title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return strings.ToLower(i.title) }

// New returns the program model for ctl.
func New(ctl Controller) tea.Model {
	m := appModel{ctl: ctl, listFor: -1}

	m.search[fieldFrom] = newInput("From city", 60)
	m.search[fieldTo] = newInput("To city", 60)
	m.search[fieldFrom].Focus()

	m.form[fieldName] = newInput("Full name", 100)
	m.form[fieldPhone] = newInput("Phone", 15)
	m.form[fieldNationalID] = newInput("National ID (CCCD)", 20)
	m.form[fieldEmail] = newInput("Email (optional)", 120)
	m.form[fieldFiles] = newInput("Files to attach, comma separated (optional)", 1024)

	m.list = newList("")
	m.list.SetSize(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	m.spinner = sp
	return m
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 48
	return ti
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

func (m appModel) Init() tea.Cmd {
	ctl := m.ctl
	return tea.Batch(
		func() tea.Msg { ctl.LoadCities(); return nil },
		m.fetchView(),
		m.waitChanged(),
		m.spinner.Tick,
		textinput.Blink,
	)
}

func (m appModel) fetchView() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		v, err := ctl.View(ctx)
		return viewMsg{view: v, err: err}
	}
}

func (m appModel) waitChanged() tea.Cmd {
	ch := m.ctl.Changed()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeList()
		return m, nil

	case changedMsg:
		return m, tea.Batch(m.fetchView(), m.waitChanged())

	case viewMsg:
		if msg.err == session.ErrClosed {
			return m, tea.Quit
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.apply(msg.view)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// apply takes a new session view and keeps the widgets in step with it.
func (m *appModel) apply(v session.View) {
	prev := m.view.Workflow.Step
	m.view = v
	step := v.Workflow.Step
	if step != prev {
		m.enterStep(step)
	}
	m.syncList()
	m.clampCursor()
}

func (m *appModel) enterStep(step workflow.Step) {
	switch step {
	case workflow.RouteSelect:
		m.searchFocus = fieldFrom
		m.focusSearch()
	case workflow.SeatSelect:
		if m.view.Workflow.Draft == nil {
			m.deck, m.seat = 0, 0
		}
	case workflow.CustomerDetails:
		m.formFocus = fieldName
		if d := m.view.Workflow.Draft; d != nil && m.form[fieldName].Value() == "" {
			m.form[fieldName].SetValue(d.CustomerInfo.Name)
			m.form[fieldPhone].SetValue(d.CustomerInfo.Phone)
			m.form[fieldNationalID].SetValue(d.CustomerInfo.NationalID)
			m.form[fieldEmail].SetValue(d.CustomerInfo.Email)
		}
		m.focusForm()
	case workflow.Confirmation:
		for i := range m.form {
			m.form[i].Reset()
		}
	}
}

// syncList rebuilds the list when the step or its items change, keeping
// the cursor otherwise.
func (m *appModel) syncList() {
	st := m.view.Workflow
	var items []list.Item
	var title string
	switch st.Step {
	case workflow.RouteSelect:
		title = "Routes"
		for _, r := range st.Routes {
			items = append(items, item{id: r.ID, title: r.FromCity + " → " + r.ToCity, desc: routeDesc(r)})
		}
	case workflow.DateSelect:
		title = "Travel date"
		for _, d := range st.Dates {
			items = append(items, item{id: d, title: d})
		}
	case workflow.TripSelect:
		title = "Departures"
		for _, t := range st.Trips {
			items = append(items, item{id: t.ID, title: t.DepartureTime + "  " + t.BusType, desc: tripDesc(t)})
		}
	default:
		return
	}
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.(item).id + "|" + it.(item).desc
	}
	key := strings.Join(keys, ",")
	if st.Step == m.listFor && key == m.listKey {
		return
	}
	keep := st.Step == m.listFor
	idx := m.list.Index()
	m.list.Title = title
	m.list.SetItems(items)
	if keep && idx < len(items) {
		m.list.Select(idx)
	} else {
		m.list.Select(0)
	}
	m.listFor, m.listKey = st.Step, key
	if st.Step == workflow.RouteSelect && len(items) == 0 && m.searchFocus == focusRoutes {
		m.searchFocus = fieldFrom
		m.focusSearch()
	}
}

func (m *appModel) resizeList() {
	h := m.height - 12
	if h < 5 {
		h = 5
	}
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	m.list.SetSize(w, h)
}

func (m *appModel) focusSearch() {
	for i := range m.search {
		if i == m.searchFocus {
			m.search[i].Focus()
		} else {
			m.search[i].Blur()
		}
	}
}

func (m *appModel) focusForm() {
	for i := range m.form {
		if i == m.formFocus {
			m.form[i].Focus()
		} else {
			m.form[i].Blur()
		}
	}
}

func (m appModel) selectedID() (string, bool) {
	it, ok := m.list.SelectedItem().(item)
	if !ok {
		return "", false
	}
	return it.id, true
}

// typing reports whether keys go to a text input.
func (m appModel) typing() bool {
	switch m.view.Workflow.Step {
	case workflow.RouteSelect:
		return m.searchFocus != focusRoutes
	case workflow.CustomerDetails:
		return true
	}
	return false
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+r":
		m.ctl.Retry()
		return m, nil
	case "ctrl+l":
		m.ctl.Refresh()
		return m, nil
	}
	if !m.typing() {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "r":
			m.ctl.Retry()
			return m, nil
		}
	}

	switch m.view.Workflow.Step {
	case workflow.RouteSelect:
		return m.routeKeys(msg)
	case workflow.DateSelect:
		return m.listKeys(msg, workflow.RouteSelect, m.ctl.ChooseDate)
	case workflow.TripSelect:
		return m.listKeys(msg, workflow.DateSelect, m.ctl.ChooseTrip)
	case workflow.SeatSelect:
		return m.seatKeys(msg)
	case workflow.CustomerDetails:
		return m.formKeys(msg)
	case workflow.Confirmation:
		switch msg.String() {
		case "enter", "n":
			m.ctl.Restart()
		}
	}
	return m, nil
}

func (m appModel) routeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	hasRoutes := len(m.view.Workflow.Routes) > 0
	switch msg.String() {
	case "tab", "shift+tab":
		n := 2
		if hasRoutes {
			n = 3
		}
		if msg.String() == "tab" {
			m.searchFocus = (m.searchFocus + 1) % n
		} else {
			m.searchFocus = (m.searchFocus + n - 1) % n
		}
		m.focusSearch()
		return m, nil
	case "enter":
		if m.searchFocus == focusRoutes {
			if id, ok := m.selectedID(); ok {
				m.ctl.ChooseRoute(id)
			}
			return m, nil
		}
		m.ctl.SearchRoutes(strings.TrimSpace(m.search[fieldFrom].Value()), strings.TrimSpace(m.search[fieldTo].Value()))
		return m, nil
	}
	var cmd tea.Cmd
	if m.searchFocus == focusRoutes {
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	m.search[m.searchFocus], cmd = m.search[m.searchFocus].Update(msg)
	return m, cmd
}

func (m appModel) listKeys(msg tea.KeyMsg, back workflow.Step, choose func(string)) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctl.Back(back)
		return m, nil
	case "enter":
		if id, ok := m.selectedID(); ok {
			choose(id)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) seatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctl.Back(workflow.TripSelect)
	case "left", "h":
		m.seat--
	case "right", "l":
		m.seat++
	case "up", "k":
		m.seat -= seatsPerRow
	case "down", "j":
		m.seat += seatsPerRow
	case "tab":
		if len(m.view.Layout) > 0 {
			m.deck = (m.deck + 1) % len(m.view.Layout)
		}
	case " ", "space":
		if id, ok := m.cursorSeat(); ok {
			m.ctl.ToggleSeat(id)
		}
	case "enter":
		m.ctl.ContinueToDetails()
	}
	m.clampCursor()
	return m, nil
}

func (m appModel) formKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctl.Back(workflow.SeatSelect)
		return m, nil
	case "tab", "down":
		m.formFocus = (m.formFocus + 1) % fieldCount
		m.focusForm()
		return m, nil
	case "shift+tab", "up":
		m.formFocus = (m.formFocus + fieldCount - 1) % fieldCount
		m.focusForm()
		return m, nil
	case "enter":
		if m.formFocus < fieldCount-1 {
			m.formFocus++
			m.focusForm()
			return m, nil
		}
		fallthrough
	case "ctrl+s":
		if !m.view.Booking {
			m.ctl.SubmitBooking(m.customer(), splitFiles(m.form[fieldFiles].Value()))
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.form[m.formFocus], cmd = m.form[m.formFocus].Update(msg)
	return m, cmd
}

func (m appModel) customer() model.CustomerInfo {
	return model.CustomerInfo{
		Name:       m.form[fieldName].Value(),
		Phone:      m.form[fieldPhone].Value(),
		NationalID: m.form[fieldNationalID].Value(),
		Email:      m.form[fieldEmail].Value(),
	}
}

func splitFiles(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m appModel) cursorSeat() (model.SeatID, bool) {
	if m.deck >= len(m.view.Layout) {
		return "", false
	}
	d := m.view.Layout[m.deck]
	if m.seat < 0 || m.seat >= d.Seats {
		return "", false
	}
	return d.SeatID(m.seat + 1), true
}

func (m *appModel) clampCursor() {
	if len(m.view.Layout) == 0 {
		m.deck, m.seat = 0, 0
		return
	}
	if m.deck >= len(m.view.Layout) {
		m.deck = len(m.view.Layout) - 1
	}
	n := m.view.Layout[m.deck].Seats
	if m.seat >= n {
		m.seat = n - 1
	}
	if m.seat < 0 {
		m.seat = 0
	}
}
