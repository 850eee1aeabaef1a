package service

import (
	"context"
	"errors"

	"github.com/ally-360/pos-terminal/internal/apierror"
	"github.com/ally-360/pos-terminal/internal/dto"
)

// BackendClient is the port to the authoritative ledger. Every call is a
// suspension point and is never made while the state lock is held.
type BackendClient interface {
	OpenRegister(ctx context.Context, req dto.OpenRegisterRequest) (*dto.RegisterResponse, error)
	// CurrentRegister returns nil, nil when the PDV has no open session.
	CurrentRegister(ctx context.Context, pdvID int) (*dto.RegisterResponse, error)
	CloseRegister(ctx context.Context, req dto.CloseRegisterRequest) (*dto.RegisterResponse, error)
	ClosingSummary(ctx context.Context, registerID string) (*dto.ClosingSummaryResponse, error)
	CreateSale(ctx context.Context, req dto.CreateSaleRequest) (*dto.CreateSaleResponse, error)
	RecordMovement(ctx context.Context, registerID string, req dto.CreateMovementRequest) (*dto.RegisterMovement, error)
}

// isConflict reports whether err is the backend saying a session is already
// open for the PDV.
func isConflict(err error) bool {
	var remote *apierror.RemoteError
	return errors.As(err, &remote) && remote.IsConflict()
}
