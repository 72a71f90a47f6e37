package domain

// User is a connected participant. Users are ephemeral: one exists only
// while its connection is a member of a room and is removed on leave or
// disconnect. There are no accounts and no passwords.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"` // palette color assigned at token issuance
}
