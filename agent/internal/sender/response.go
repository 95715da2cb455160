package sender

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/obsidianstack/insightchannel/pkg/types"
)

// ParseResponse decodes a collector batch response. It reports false for an
// empty or malformed body and for counts that violate
// itemsReceived - itemsAccepted == len(errors).
func ParseResponse(body []byte) (*types.BatchResponse, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false
	}
	var resp types.BatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false
	}
	if !resp.Valid() {
		return nil, false
	}
	return &resp, true
}

// isRetriable reports whether a batch or item rejected with status is worth
// sending again.
func isRetriable(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable:
		return true
	}
	return false
}

// isSuccess reports a full acknowledgement: any 2xx other than 206.
func isSuccess(status int) bool {
	return status >= 200 && status < 300 && status != http.StatusPartialContent
}
