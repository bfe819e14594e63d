package chain

import (
	"context"
	"net/url"
	"time"

	"ring-settler/boff"
	"ring-settler/config"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// Head is a snapshot of the chain tip taken once per ring submission. Order
// expiration values are compared against it: small values are block heights,
// large values are Unix timestamps.
type Head struct {
	Number uint64
	Time   uint64
}

type HeadSource interface {
	Head(ctx context.Context) (Head, error)
}

// StaticHeadSource serves a fixed head, used in tests and in deployments
// without a node connection.
type StaticHeadSource struct {
	Current Head
}

func (s StaticHeadSource) Head(ctx context.Context) (Head, error) {
	return s.Current, nil
}

// ClockHeadSource serves wall-clock time with no block number, so only
// timestamp-style expirations are meaningful.
type ClockHeadSource struct{}

func (ClockHeadSource) Head(ctx context.Context) (Head, error) {
	return Head{Number: 0, Time: uint64(time.Now().Unix())}, nil
}

// RPCHeadSource fetches the latest header from an EVM node.
type RPCHeadSource struct {
	client *ethclient.Client
}

func DialRPCNode(nodeURL *url.URL) (*RPCHeadSource, error) {
	client, err := ethclient.Dial(nodeURL.String())
	if err != nil {
		return nil, errors.Wrap(err, "DialRPCNode")
	}

	return &RPCHeadSource{client: client}, nil
}

func (s *RPCHeadSource) Head(ctx context.Context) (Head, error) {
	header, err := boff.RetryWithMaxElapsed(ctx, func() (Head, error) {
		ctx, cancelFunc := context.WithTimeout(ctx, config.Timeout)
		defer cancelFunc()

		h, err := s.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return Head{}, err
		}
		return Head{Number: h.Number.Uint64(), Time: h.Time}, nil
	}, "chain head")
	if err != nil {
		return Head{}, errors.Wrap(err, "Head")
	}

	return header, nil
}

// NewHeadSource picks the head source for the configured chain: an RPC node
// when one is set, otherwise the local clock.
func NewHeadSource(cfg config.ChainConfig) (HeadSource, error) {
	if cfg.NodeURL == "" {
		return ClockHeadSource{}, nil
	}

	nodeURL, err := cfg.FullNodeURL()
	if err != nil {
		return nil, errors.Wrap(err, "NewHeadSource")
	}

	return DialRPCNode(nodeURL)
}
