package models

import (
	"gorm.io/gorm"
)

type AuthType string

const (
	AuthTypePassword   AuthType = "password"
	AuthTypePrivateKey AuthType = "private_key"
)

// Server is one remote host in the fleet. EncryptedCredentials holds the
// AES-GCM ciphertext of the password or private key; plaintext exists only
// inside the execution substrate's connect call. HostKeyFingerprint is the
// pinned SHA256 fingerprint; a server without one can never establish a
// verified session.
type Server struct {
	gorm.Model

	UniqueID string `gorm:"unique"`

	Name     string
	Hostname string
	Port     int
	Username string

	AuthType             AuthType
	EncryptedCredentials []byte
	HostKeyFingerprint   string

	Sites []Site `gorm:"constraint:OnDelete:CASCADE"`
}

// Site is one WordPress installation on a server.
type Site struct {
	gorm.Model

	UniqueID string `gorm:"unique"`
	ServerID uint

	Domain        string
	WordPressPath string
	Multisite     bool

	DatabaseName string
}
