package models

// User is a local account. Email is the primary identifier and is stored
// lowercased and trimmed.
type User struct {
	Email              string `json:"email"`
	Name               string `json:"name"`
	PasswordHash       string `json:"password_hash"`
	CreatedAt          int64  `json:"created_at"` // epoch milliseconds
	SecurityQuestion   string `json:"security_question,omitempty"`
	SecurityAnswerHash string `json:"security_answer_hash,omitempty"`
}

// HasRecovery reports whether password recovery is configured.
func (u *User) HasRecovery() bool {
	return u.SecurityQuestion != "" && u.SecurityAnswerHash != ""
}
