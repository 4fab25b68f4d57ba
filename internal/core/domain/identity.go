package domain

// Identity is the authenticated principal as returned by the identity API.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// DisplayName returns the name when set, otherwise the email.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// Persistence keys shared with every consumer of the durable store.
const (
	KeyUser  = "user"
	KeyToken = "token"
)
