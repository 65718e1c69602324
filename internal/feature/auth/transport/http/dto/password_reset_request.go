package dto

// PasswordResetReq is the body of POST /password_resets.
type PasswordResetReq struct {
	Email string `json:"email" binding:"required"`
}

// PasswordUpdateReq is the body of PATCH /password_resets/:token.
type PasswordUpdateReq struct {
	Email                string `json:"email" binding:"required"`
	Password             string `json:"password" binding:"required"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}
