package request

// SaveResetSettings is the body of PUT /reset/settings.
type SaveResetSettings struct {
	ConfirmationCode   string `json:"confirmation_code" validate:"required,max=64"`
	PreserveMasterData *bool  `json:"preserve_master_data" validate:"required"`
}

// Reset is the body of POST /reset. An empty token is not rejected here so
// that it surfaces as a confirmation mismatch.
type Reset struct {
	ConfirmationToken  string `json:"confirmation_token"`
	PreserveMasterData *bool  `json:"preserve_master_data"`
}
