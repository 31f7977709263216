package auth

// Claimant is the authenticated caller as seen by the attendance and points core.
type Claimant struct {
	UserID string
	Role   Role
}
