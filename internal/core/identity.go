package core

// Identity is the verified user bound to a connection at admission.
type Identity struct {
	Name  string
	Email string
}

// Anonymous reports whether no identity was attached.
func (i Identity) Anonymous() bool {
	return i.Name == "" && i.Email == ""
}
