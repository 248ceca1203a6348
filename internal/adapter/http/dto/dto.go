package dto

// Request bodies bind from either a web form or JSON. Presence checks are
// left to the ledger service so that errors follow its check order.

// BalanceRequest is the request body for a balance lookup.
type BalanceRequest struct {
	Username string `form:"username" json:"username" binding:"omitempty,max=64,username"`
}

// TransferRequest is the request body for a transfer.
type TransferRequest struct {
	Sender   string `form:"sender" json:"sender" binding:"omitempty,max=64,username"`
	Receiver string `form:"receiver" json:"receiver" binding:"omitempty,max=64,username"`
	Amount   string `form:"amount" json:"amount"`
}

// BalanceResponse is the response body for a balance lookup.
type BalanceResponse struct {
	Username string `json:"username"`
	Balance  string `json:"balance"`
	Message  string `json:"message"`
}

// TransferResponse is the response body for a completed transfer.
type TransferResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    string `json:"amount"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TransferListResponse wraps a user's transfer history.
type TransferListResponse struct {
	Username  string             `json:"username"`
	Transfers []TransferResponse `json:"transfers"`
}
