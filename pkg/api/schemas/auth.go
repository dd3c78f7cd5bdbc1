package schemas

// RegisterRequest represents the payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username" minLength:"3" maxLength:"64" doc:"Login name, unique"`
	Email    string `json:"email" format:"email" doc:"Email address, unique"`
	Password string `json:"password" minLength:"8" doc:"Password, stored as a bcrypt hash"`
}

// TokenResponse contains a newly minted access token and refresh token.
type TokenResponse struct {
	AccessToken  string `json:"access_token" doc:"Short-lived access token"`
	RefreshToken string `json:"refresh_token" doc:"Refresh token for minting new access tokens"`
	TokenType    string `json:"token_type" doc:"Token type descriptor" example:"bearer"`
	ExpiresIn    int    `json:"expires_in" doc:"Access token lifetime in seconds"`
}

// LoginRequest represents the payload for password login.
type LoginRequest struct {
	Username string `json:"username" doc:"Login name"`
	Password string `json:"password" doc:"Password"`
}

// RefreshTokenRequest represents the payload for requesting a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" doc:"Refresh token issued from login or previous refresh"`
}
