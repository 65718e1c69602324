package entity

// TokenKind identifies which secret a token is checked against.
// The set is closed: each kind maps to exactly one digest column.
type TokenKind int

const (
	TokenPassword TokenKind = iota + 1
	TokenRemember
	TokenActivation
	TokenReset
)

func (k TokenKind) String() string {
	switch k {
	case TokenPassword:
		return "password"
	case TokenRemember:
		return "remember"
	case TokenActivation:
		return "activation"
	case TokenReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Column names a credential column on the users table.
type Column string

const (
	ColumnPasswordDigest   Column = "password_digest"
	ColumnRememberDigest   Column = "remember_digest"
	ColumnSessionToken     Column = "session_token"
	ColumnActivationDigest Column = "activation_digest"
	ColumnActivated        Column = "activated"
	ColumnActivatedAt      Column = "activated_at"
	ColumnResetDigest      Column = "reset_digest"
	ColumnResetSentAt      Column = "reset_sent_at"
)

// Columns is a set of column writes. A nil value clears the column.
type Columns map[Column]any
