package domain

import "context"

// Client is the session protocol against the POS back office.
type Client interface {
	Open(ctx context.Context, creds Credentials) (string, error)
	AcquireLock(ctx context.Context, loginID, userID, userPassword string) (string, error)
	Submit(ctx context.Context, session Session, windowAction, target, payload string) (*Response, error)
	Release(ctx context.Context, session Session) error
	Close(ctx context.Context, loginID string) error
	FetchStock(ctx context.Context, session Session, warehouseCode string) ([]StockLevel, error)
}
