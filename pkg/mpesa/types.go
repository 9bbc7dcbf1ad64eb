package mpesa

// Request/response shapes for the Daraja API surface this platform uses:
// STK push issuance, STK status query, and B2C disbursement.

type STKPushRequest struct {
	Amount           string
	PhoneNumber      string
	AccountReference string
	Description      string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResult is the polled status of an earlier push request. The gateway
// serializes ResultCode as a string on this endpoint; the client normalizes
// it to an int so the webhook and the reconciler share one mapping.
type STKQueryResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDescription string
}

type DisbursementRequest struct {
	Amount      string
	PhoneNumber string
	Remarks     string
	Occasion    string
}

type DisbursementResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkQueryResponse struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
}
