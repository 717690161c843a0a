package dto

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,min=1,max=64"`
	LastName  string `json:"last_name" validate:"required,min=1,max=64"`
	Password  string `json:"password" validate:"required,strong_password"`
	// SessionID links the registration to the visitor session being promoted.
	SessionID string `json:"session_id"`
}

func (r RegisterRequest) Validate() error {
	return GetValidator().Struct(r)
}

type RegisterResponse struct {
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Profile   ProfileResponse `json:"profile"`
	Tokens    *TokenPair      `json:"tokens"`
	Message   string          `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Validate() error {
	return GetValidator().Struct(r)
}

type LoginResponse struct {
	UserID string     `json:"user_id"`
	Tokens *TokenPair `json:"tokens"`
}

type TokenPair struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type ProfileResponse struct {
	UserID       string  `json:"user_id"`
	Email        string  `json:"email"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	SolarBalance float64 `json:"solar_balance"`
	TotalEarned  float64 `json:"total_earned"`
	TotalSpent   float64 `json:"total_spent"`
}
