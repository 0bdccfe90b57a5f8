// AngelaMos | 2026
// dto.go

package billing

type CreateCheckoutSessionRequest struct {
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url"  validate:"required,url"`
}

type CreatePortalSessionRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

type SessionResponse struct {
	URL string `json:"url"`
}
