package orange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const transactionsPath = "/api/eWallet/v1/transactions"

// TransactionStatus is the provider's view of one transaction.
type TransactionStatus struct {
	TransactionID string
	Status        string
	Reason        string
	Raw           []byte
}

type statusResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	StatusReason  string `json:"statusReason"`
}

func (c *Client) TransactionStatus(ctx context.Context, providerTxID string) (*TransactionStatus, error) {
	if providerTxID == "" {
		return nil, fmt.Errorf("provider transaction id is required")
	}
	body, _, err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     transactionsPath + "?transactionId=" + url.QueryEscape(providerTxID),
		accepted: []int{http.StatusOK},
		retries:  2,
	})
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []statusResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode transaction status: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("no transaction %s at provider", providerTxID)
		}
		resp = list[0]
	} else if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode transaction status: %w", err)
	}

	if resp.TransactionID == "" {
		resp.TransactionID = providerTxID
	}
	return &TransactionStatus{
		TransactionID: resp.TransactionID,
		Status:        strings.ToUpper(strings.TrimSpace(resp.Status)),
		Reason:        resp.StatusReason,
		Raw:           body,
	}, nil
}
