package tui

// DroneLine is one row of the drone dashboard.
type DroneLine struct {
	Name    string
	Model   string
	Status  string
	Battery float64
}

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgTokensFound signals that persisted credentials were found.
type MsgTokensFound struct{}

// MsgTokensNotFound signals that no persisted credentials exist.
type MsgTokensNotFound struct{}

// MsgTokenValid signals that the stored access token is still valid.
type MsgTokenValid struct{}

// MsgTokenExpired signals that the stored access token has expired.
type MsgTokenExpired struct{}

// MsgRefreshing signals that a silent token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the silent refresh succeeded.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that the silent refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgLoggingIn signals that a login request is in flight.
type MsgLoggingIn struct{ Email string }

// MsgLoginFailed signals that the login request was rejected.
type MsgLoginFailed struct{ Err error }

// MsgSignedIn signals a settled authenticated session.
type MsgSignedIn struct {
	Name        string
	Email       string
	Designation string
}

// MsgSignedOut signals a settled unauthenticated session.
type MsgSignedOut struct{}

// MsgFetchingDrones signals that the drone dashboard is loading.
type MsgFetchingDrones struct{}

// MsgDronesLoaded carries the loaded drone dashboard rows.
type MsgDronesLoaded struct{ Drones []DroneLine }

// MsgFleetFailed signals that a fleet request failed.
type MsgFleetFailed struct{ Err error }

// MsgDone signals successful completion of the demo flow.
type MsgDone struct{ Email string }

// MsgFatal signals a fatal error that terminates the flow.
type MsgFatal struct{ Err error }
