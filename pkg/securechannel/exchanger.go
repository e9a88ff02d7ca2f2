package securechannel

import "context"

// Exchanger delivers one pairing request to a peer resource and returns its
// response body. pkg/transport provides the HTTP implementation.
type Exchanger interface {
	Exchange(ctx context.Context, path string, body []byte) ([]byte, error)
}

// ExchangerFunc adapts a function to Exchanger.
type ExchangerFunc func(ctx context.Context, path string, body []byte) ([]byte, error)

// Exchange calls f.
func (f ExchangerFunc) Exchange(ctx context.Context, path string, body []byte) ([]byte, error) {
	return f(ctx, path, body)
}
