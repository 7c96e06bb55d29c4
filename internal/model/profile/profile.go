package profile

import "strings"

// Profile is the public view of a student account.
type Profile struct {
	RegNumber string `json:"regNumber"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar,omitempty"`
}

// Record is the stored account: profile plus password hash.
type Record struct {
	Profile
	PasswordHash string `json:"passwordHash"`
}

// Update carries the editable profile fields; nil means unchanged.
type Update struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// Apply merges u into p. Blank name or email values are ignored.
func (u Update) Apply(p Profile) Profile {
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Email != nil && strings.TrimSpace(*u.Email) != "" {
		p.Email = strings.TrimSpace(*u.Email)
	}
	if u.Avatar != nil {
		p.Avatar = strings.TrimSpace(*u.Avatar)
	}
	return p
}
