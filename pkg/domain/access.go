package domain

// DefaultPremiumTeaser is shown for premium results without their own teaser.
const DefaultPremiumTeaser = "Доступ к расширенному разбору."

// User is the caller identity extracted from the host platform.
// ID is the external (Telegram) user id.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// Access is the caller-supplied flag set used for premium gating.
type Access struct {
	IsAdmin         bool `json:"is_admin"`
	PremiumUnlocked bool `json:"premium_unlocked"`
}

// CanAccessPremium is true for admins and for users who paid.
func (a Access) CanAccessPremium() bool {
	return a.IsAdmin || a.PremiumUnlocked
}

// Caller bundles who is driving a session and what they may see.
// User is nil for anonymous callers.
type Caller struct {
	User   *User
	Access Access
}

// Locked reports whether the premium part of r is gated for a.
// Recommendations and diagnosis stay visible either way.
func (r *Result) Locked(a Access) bool {
	return r.Premium && !a.CanAccessPremium()
}

// Teaser returns the premium teaser, falling back to DefaultPremiumTeaser.
func (r *Result) Teaser() string {
	if r.PremiumTeaser != "" {
		return r.PremiumTeaser
	}
	return DefaultPremiumTeaser
}
