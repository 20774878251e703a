package oracle

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

// lazyClient dials the Ethereum RPC endpoint on first use and caches the
// connection for subsequent calls.
type lazyClient struct {
	rpcURL string

	mux    sync.Mutex
	client *ethclient.Client
}

func (l *lazyClient) get(ctx context.Context) (*ethclient.Client, error) {
	l.mux.Lock()
	defer l.mux.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	client, err := ethclient.DialContext(ctx, l.rpcURL)
	if err != nil {
		return nil, err
	}
	l.client = client
	return client, nil
}
