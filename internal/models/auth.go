package models

const (
	RootLogin = "root"
	RootID    = int64(0)
)

// Publisher is an authenticated
// segment producer.
type Publisher struct {
	ID    int64
	Login string
}

type Credentials struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
}
