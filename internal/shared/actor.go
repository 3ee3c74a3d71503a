package shared

// Actor identifies who performs a domain action. It is supplied explicitly
// by the caller on every mutating call; domain code never looks it up from
// ambient request state.
type Actor struct {
	ID        int64
	IP        string
	UserAgent string
}

// System is the actor used by background jobs and internal maintenance.
var System = Actor{ID: 0}
