package services

import (
	"context"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/orange"
)

// Provider is the part of the Orange Money client the services call.
type Provider interface {
	Config() config.Provider
	Token(ctx context.Context) (string, error)
	GenerateQRCode(ctx context.Context, in orange.QRRequest) (*orange.QRCode, error)
	TransactionStatus(ctx context.Context, providerTxID string) (*orange.TransactionStatus, error)
	PublicKey(ctx context.Context) (*orange.PublicKey, error)
	RegisterCallback(ctx context.Context) (string, error)
}

var _ Provider = (*orange.Client)(nil)
