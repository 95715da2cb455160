package types

// BatchResponse is the JSON body the collector returns for a track request.
//
// A response is only meaningful when ItemsReceived >= ItemsAccepted and the
// difference equals len(Errors); see Valid.
type BatchResponse struct {
	ItemsReceived int          `json:"itemsReceived"`
	ItemsAccepted int          `json:"itemsAccepted"`
	Errors        []BatchError `json:"errors"`
	AppID         string       `json:"appId,omitempty"`
}

// BatchError reports one rejected item by its index in the submitted batch.
type BatchError struct {
	Index      int    `json:"index"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
}

// Valid reports whether the received/accepted/error counts agree.
func (r *BatchResponse) Valid() bool {
	if r == nil {
		return false
	}
	if r.ItemsReceived < r.ItemsAccepted {
		return false
	}
	return r.ItemsReceived-r.ItemsAccepted == len(r.Errors)
}
