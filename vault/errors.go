package vault

import "errors"

var (
	// Validation errors: caller-fixable, no state change.
	ErrInvalidCollateralToken = errors.New("vault: invalid collateral token")
	ErrZeroCollateralAmount   = errors.New("vault: collateral amount must be positive")
	ErrZeroLoanAmount         = errors.New("vault: loan amount must be positive")
	ErrInvalidLeverage        = errors.New("vault: leverage must be positive")
	ErrInvalidFeePercent      = errors.New("vault: mint fee percent must be at most 100")
	ErrInvalidPosition        = errors.New("vault: position does not exist")

	// Authorization errors.
	ErrNotPositionOwner = errors.New("vault: caller is not the position owner")
	ErrMissingRole      = errors.New("vault: caller missing required role")
	ErrPaused           = errors.New("vault: module paused")

	// Economic-limit errors: business rule violated, no state change.
	ErrLoanExceedsLTVLimit                   = errors.New("vault: loan exceeds ltv limit")
	ErrMaxDebtReached                        = errors.New("vault: global debt ceiling reached")
	ErrInsufficientCollateral                = errors.New("vault: insufficient collateral")
	ErrInsufficientCollateralAfterWithdrawal = errors.New("vault: collateral below ltv requirement after withdrawal")
	ErrAmountExceedsLoan                     = errors.New("vault: amount exceeds outstanding loan")
	ErrPositionNotLiquidatable               = errors.New("vault: position not liquidatable")
	ErrNoPositionsToLiquidate                = errors.New("vault: no positions to liquidate")

	// Integration failures: the whole operation reverts atomically.
	ErrCollateralTransferFailed = errors.New("vault: collateral transfer failed")
	ErrLiquidationFailed        = errors.New("vault: liquidation transfer failed")
	ErrStrategyCallFailed       = errors.New("vault: strategy call failed")
	ErrReceiptIssuerFailed      = errors.New("vault: receipt issuer call failed")

	// Oracle failures: price-dependent operations refuse to proceed.
	ErrInvalidPrice = errors.New("vault: oracle price not positive")
	ErrStalePrice   = errors.New("vault: oracle price stale")
)
