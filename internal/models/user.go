package models

// Credential is a plaintext username/password pair.
type Credential struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}
