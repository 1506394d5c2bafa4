package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output of the session flow.
type Displayer interface {
	Banner()
	TokensFound()
	TokensNotFound()
	TokenValid()
	TokenExpired()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	LoggingIn(email string)
	LoginFailed(err error)
	SignedIn(name, email, designation string)
	SignedOut()
	FetchingDrones()
	DronesLoaded(drones []DroneLine)
	FleetFailed(err error)
	Done(email string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w. Used when stderr is not a
// TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== SkyOps Drone Operations CLI ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) TokensFound() {
	fmt.Fprintln(p.w, "Found existing session credentials!")
}

func (p *PlainDisplayer) TokensNotFound() {
	fmt.Fprintln(p.w, "No existing session found.")
}

func (p *PlainDisplayer) TokenValid() {
	fmt.Fprintln(p.w, "Access token is still valid, using it...")
}

func (p *PlainDisplayer) TokenExpired() {
	fmt.Fprintln(p.w, "Access token expired.")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing session...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Session refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginFailed(err error) {
	fmt.Fprintf(p.w, "Login failed: %v\n", err)
}

func (p *PlainDisplayer) SignedIn(name, email, designation string) {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Signed in: %s <%s>\n", name, email)
	if designation != "" {
		fmt.Fprintf(p.w, "Designation: %s\n", designation)
	}
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) SignedOut() {
	fmt.Fprintln(p.w, "Session is unauthenticated.")
}

func (p *PlainDisplayer) FetchingDrones() {
	fmt.Fprintln(p.w, "\nFetching drones at hub...")
}

func (p *PlainDisplayer) DronesLoaded(drones []DroneLine) {
	fmt.Fprintf(p.w, "Drones at hub: %d\n", len(drones))
	for _, d := range drones {
		fmt.Fprintf(p.w, "  %-16s %-12s %-10s %3.0f%%\n", d.Name, d.Model, d.Status, d.Battery)
	}
}

func (p *PlainDisplayer) FleetFailed(err error) {
	fmt.Fprintf(p.w, "Fleet request failed: %v\n", err)
}

func (p *PlainDisplayer) Done(email string) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintf(p.w, "Session active for %s\n", email)
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                      {}
func (NoopDisplayer) TokensFound()                 {}
func (NoopDisplayer) TokensNotFound()              {}
func (NoopDisplayer) TokenValid()                  {}
func (NoopDisplayer) TokenExpired()                {}
func (NoopDisplayer) Refreshing()                  {}
func (NoopDisplayer) RefreshOK()                   {}
func (NoopDisplayer) RefreshFailed(_ error)        {}
func (NoopDisplayer) LoggingIn(_ string)           {}
func (NoopDisplayer) LoginFailed(_ error)          {}
func (NoopDisplayer) SignedIn(_, _, _ string)      {}
func (NoopDisplayer) SignedOut()                   {}
func (NoopDisplayer) FetchingDrones()              {}
func (NoopDisplayer) DronesLoaded(_ []DroneLine)   {}
func (NoopDisplayer) FleetFailed(_ error)          {}
func (NoopDisplayer) Done(_ string)                {}
func (NoopDisplayer) Fatal(_ error)                {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) TokensFound() {
	t.p.Send(MsgTokensFound{})
}

func (t *ProgramDisplayer) TokensNotFound() {
	t.p.Send(MsgTokensNotFound{})
}

func (t *ProgramDisplayer) TokenValid() {
	t.p.Send(MsgTokenValid{})
}

func (t *ProgramDisplayer) TokenExpired() {
	t.p.Send(MsgTokenExpired{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginFailed(err error) {
	t.p.Send(MsgLoginFailed{Err: err})
}

func (t *ProgramDisplayer) SignedIn(name, email, designation string) {
	t.p.Send(MsgSignedIn{Name: name, Email: email, Designation: designation})
}

func (t *ProgramDisplayer) SignedOut() {
	t.p.Send(MsgSignedOut{})
}

func (t *ProgramDisplayer) FetchingDrones() {
	t.p.Send(MsgFetchingDrones{})
}

func (t *ProgramDisplayer) DronesLoaded(drones []DroneLine) {
	t.p.Send(MsgDronesLoaded{Drones: drones})
}

func (t *ProgramDisplayer) FleetFailed(err error) {
	t.p.Send(MsgFleetFailed{Err: err})
}

func (t *ProgramDisplayer) Done(email string) {
	t.p.Send(MsgDone{Email: email})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
