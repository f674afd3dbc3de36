package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/eventforms/backend/pkg/utils"
)

// ErrBadCredentials is returned for an unknown user or wrong password.
var ErrBadCredentials = errors.New("invalid username or password")

// Admins verifies administrator credentials. There is a single configured account.
type Admins struct {
	username     string
	passwordHash string
}

// NewAdmins builds the credential set. passwordHash is a bcrypt hash; when it is empty the
// plain password is hashed once here. An empty password disables login.
func NewAdmins(username, password, passwordHash string) (*Admins, error) {
	if passwordHash == "" && password != "" {
		h, err := utils.HashPassword(password)
		if err != nil {
			return nil, err
		}
		passwordHash = h
	}
	return &Admins{username: strings.TrimSpace(username), passwordHash: passwordHash}, nil
}

// Enabled reports whether any credential is configured.
func (a *Admins) Enabled() bool {
	return a.username != "" && a.passwordHash != ""
}

// Check verifies username and password.
func (a *Admins) Check(username, password string) error {
	if !a.Enabled() {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.username)) == 1
	passOK := utils.CheckPassword(password, a.passwordHash)
	if !userOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}
