package model

// TokenEntry maps a human-readable token name to its address.
type TokenEntry struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}
